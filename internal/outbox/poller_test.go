package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/domain"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/repository"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoller_DirectPublisherRunsHandlers(t *testing.T) {
	e1 := settledEvent("order-1", "u-1", domain.OwnerKindRegistered)
	e2 := settledEvent("order-2", "u-2", domain.OwnerKindGuest)
	store := newMockStore(e1, e2)
	notify := &recordingHandler{name: "notify"}
	cleanup := &recordingHandler{name: "cleanup"}

	p := NewPoller(store, NewDirectPublisher(notify, cleanup), time.Second, time.Second, logger.Discard())
	n := p.ProcessUnpublished(context.Background())

	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"order-1", "order-2"}, notify.seen)
	assert.Equal(t, []string{"order-1", "order-2"}, cleanup.seen)
	assert.True(t, store.processed[e1.ID])

	assert.Equal(t, 0, p.ProcessUnpublished(context.Background()), "processed events are not redelivered")
}

func TestPoller_FailedPublishIsRetried(t *testing.T) {
	e1 := settledEvent("order-1", "u-1", domain.OwnerKindRegistered)
	e2 := settledEvent("order-2", "u-1", domain.OwnerKindRegistered)
	store := newMockStore(e1, e2)
	pub := &failingPublisher{fail: map[string]bool{e1.ID: true}}

	p := NewPoller(store, pub, time.Second, time.Second, logger.Discard())
	assert.Equal(t, 1, p.ProcessUnpublished(context.Background()))
	assert.False(t, store.processed[e1.ID])
	assert.True(t, store.processed[e2.ID])

	delete(pub.fail, e1.ID)
	assert.Equal(t, 1, p.ProcessUnpublished(context.Background()))
	assert.True(t, store.processed[e1.ID])
}

func TestPoller_MarkFailureLeavesEventPending(t *testing.T) {
	store := newMockStore(settledEvent("order-1", "u-1", domain.OwnerKindRegistered))
	store.markErr = errors.New("db down")

	p := NewPoller(store, &failingPublisher{}, time.Second, time.Second, logger.Discard())
	assert.Equal(t, 0, p.ProcessUnpublished(context.Background()))
}

func TestDirectPublisher_HandlerErrorFailsPublish(t *testing.T) {
	ok := &recordingHandler{name: "ok"}
	bad := &recordingHandler{name: "bad", err: errors.New("boom")}
	pub := NewDirectPublisher(ok, bad)

	err := pub.Publish(context.Background(), settledEvent("order-1", "u-1", domain.OwnerKindRegistered))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: boom")
	assert.Equal(t, 1, ok.count(), "handlers after a failure still run")
}

func TestDirectPublisher_RetryRunsOnlyFailedHandlers(t *testing.T) {
	ok := &recordingHandler{name: "cart-cleanup"}
	flaky := &recordingHandler{name: "notify", err: errors.New("db down")}
	store := newMockStore(settledEvent("order-1", "u-1", domain.OwnerKindRegistered))
	p := NewPoller(store, NewDirectPublisher(ok, flaky), time.Second, time.Second, logger.Discard())

	assert.Equal(t, 0, p.ProcessUnpublished(context.Background()))
	assert.Equal(t, 0, p.ProcessUnpublished(context.Background()))
	assert.Equal(t, 1, ok.count())
	assert.Equal(t, 2, flaky.count())

	flaky.m.Lock()
	flaky.err = nil
	flaky.m.Unlock()
	assert.Equal(t, 1, p.ProcessUnpublished(context.Background()))
	assert.Equal(t, 1, ok.count())
	assert.Equal(t, 3, flaky.count())

	evt := settledEvent("order-2", "u-1", domain.OwnerKindRegistered)
	require.NoError(t, NewDirectPublisher(ok).Publish(context.Background(), evt))
	assert.Equal(t, 2, ok.count(), "a fresh event reaches every handler")
}

func TestDirectPublisher_SkipsUnknownTypes(t *testing.T) {
	h := &recordingHandler{name: "h"}
	err := NewDirectPublisher(h).Publish(context.Background(), &repository.OutboxEvent{
		ID: "e-1", EventType: "order.refunded", Payload: []byte(`{}`),
	})
	require.NoError(t, err)
	assert.Zero(t, h.count())

	err = NewDirectPublisher(h).Publish(context.Background(), &repository.OutboxEvent{
		ID: "e-2", EventType: domain.EventOrderSettled, Payload: []byte(`{not json`),
	})
	assert.Error(t, err)
}

func TestPoller_RunStopsOnCancel(t *testing.T) {
	p := NewPoller(newMockStore(), NewDirectPublisher(), 5*time.Millisecond, time.Second, logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
