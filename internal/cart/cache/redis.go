package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultKeyPrefix = "storefront:cart"
	DefaultTTL       = 15 * time.Minute

	// entryVersion is bumped whenever the cached shape changes so that old
	// entries read as misses after a deploy.
	entryVersion = 1
)

// entry is the cached form of a cart. The user id lives in the key.
type entry struct {
	Version   int                     `json:"v"`
	Items     []domain.StoredCartItem `json:"items"`
	CreatedAt time.Time               `json:"createdAt"`
	UpdatedAt time.Time               `json:"updatedAt"`
}

type Option func(*RedisCache)

// WithTTL sets the base expiry. Each write adds up to a third of it as jitter.
func WithTTL(ttl time.Duration) Option {
	return func(r *RedisCache) {
		if ttl > 0 {
			r.baseTTL = ttl
		}
	}
}

func WithKeyPrefix(prefix string) Option {
	return func(r *RedisCache) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

type RedisCache struct {
	client  *redis.Client
	prefix  string
	baseTTL time.Duration
}

func NewRedisCache(client *redis.Client, opts ...Option) *RedisCache {
	r := &RedisCache{
		client:  client,
		prefix:  DefaultKeyPrefix,
		baseTTL: DefaultTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns ErrCacheMiss for absent entries and for entries written in an
// older or unreadable format; the latter are dropped on the way out.
func (r *RedisCache) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	key := r.key(userID)
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil || e.Version != entryVersion {
		_ = r.client.Del(ctx, key).Err()
		return nil, fmt.Errorf("%w: discarded unreadable entry %s", ErrCacheMiss, key)
	}
	return &domain.Cart{
		UserID:    userID,
		Items:     e.Items,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}, nil
}

func (r *RedisCache) Set(ctx context.Context, userID string, cart *domain.Cart) error {
	data, err := json.Marshal(entry{
		Version:   entryVersion,
		Items:     cart.Items,
		CreatedAt: cart.CreatedAt,
		UpdatedAt: cart.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := r.client.Set(ctx, r.key(userID), data, r.ttl()).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// ttl spreads expiries so carts cached together do not expire together.
func (r *RedisCache) ttl() time.Duration {
	jitter := int64(r.baseTTL / 3)
	if jitter <= 0 {
		return r.baseTTL
	}
	return r.baseTTL + time.Duration(rand.Int64N(jitter))
}

func (r *RedisCache) key(userID string) string {
	return fmt.Sprintf("%s:%s", r.prefix, userID)
}
