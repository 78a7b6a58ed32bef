package settlement

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/payment"
)

type SessionSource interface {
	RetrieveSession(ctx context.Context, reference string) (*payment.Confirmation, error)
}

type SweepStore interface {
	StalePendingReferences(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
	TouchOrder(ctx context.Context, ref string) error
}

// Sweeper pulls the processor state of PENDING orders that carry a reference
// but were never settled, covering lost webhooks and abandoned success pages.
type Sweeper struct {
	reconciler *Reconciler
	sessions   SessionSource
	store      SweepStore
	interval   time.Duration
	age        time.Duration
	batch      int
	now        func() time.Time
	log        *slog.Logger
}

func NewSweeper(reconciler *Reconciler, sessions SessionSource, store SweepStore, interval, age time.Duration, log *slog.Logger) *Sweeper {
	return &Sweeper{
		reconciler: reconciler,
		sessions:   sessions,
		store:      store,
		interval:   interval,
		age:        age,
		batch:      50,
		now:        time.Now,
		log:        log.With("component", "settlement-sweeper"),
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Sweep runs one pass and returns how many orders it settled.
func (s *Sweeper) Sweep(ctx context.Context) int {
	refs, err := s.store.StalePendingReferences(ctx, s.now().Add(-s.age), s.batch)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to list stale pending orders", "error", err)
		return 0
	}

	settled := 0
	for _, ref := range refs {
		c, err := s.sessions.RetrieveSession(ctx, ref)
		if err != nil {
			if !errors.Is(err, payment.ErrSessionNotFound) {
				s.log.WarnContext(ctx, "failed to retrieve session", "reference", ref, "error", err)
			}
			s.touch(ctx, ref)
			continue
		}
		res, err := s.reconciler.Settle(ctx, c)
		if err != nil {
			s.log.ErrorContext(ctx, "sweep settlement failed", "reference", ref, "error", err)
			s.touch(ctx, ref)
			continue
		}
		switch res.Outcome {
		case OutcomeSettled, OutcomeRecovered:
			settled++
		case OutcomeNotPaid:
			s.touch(ctx, ref)
		}
	}
	if settled > 0 {
		s.log.InfoContext(ctx, "sweep settled orders", "count", settled)
	}
	return settled
}

func (s *Sweeper) touch(ctx context.Context, ref string) {
	if err := s.store.TouchOrder(ctx, ref); err != nil {
		s.log.WarnContext(ctx, "failed to touch order", "reference", ref, "error", err)
	}
}
