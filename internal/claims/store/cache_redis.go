package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"claimverifier/internal/claims/metrics"
	"claimverifier/internal/claims/models"
)

const (
	lookupKeyPrefix     = "claims:lookup:"
	lookupGenKeyPrefix  = "claims:lookupgen:"
	lookupFillTimeout   = 5 * time.Second
	lookupGenerationTTL = 24 * time.Hour
)

// errStaleFill aborts a cache write whose rows predate an invalidation.
var errStaleFill = errors.New("lookup cache fill is stale")

// LookupSource is the authoritative claims-by-email query.
type LookupSource interface {
	ListByEmail(ctx context.Context, email string) ([]models.LookupRow, error)
}

// CachedLookup is a read-through Redis cache in front of a LookupSource. Cache failures
// degrade to the source; they never fail the lookup.
type CachedLookup struct {
	source  LookupSource
	client  *redis.Client
	ttl     time.Duration
	group   singleflight.Group
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewCachedLookup(source LookupSource, client *redis.Client, ttl time.Duration, logger *slog.Logger, m *metrics.Metrics) *CachedLookup {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedLookup{source: source, client: client, ttl: ttl, logger: logger, metrics: m}
}

// ListByEmail serves rows from Redis when present and otherwise reads the source. A fill is
// tagged with the email's generation as read before the source query and is written back
// only while that generation is current, so rows loaded before an Invalidate never land.
func (c *CachedLookup) ListByEmail(ctx context.Context, email string) ([]models.LookupRow, error) {
	key := lookupKeyPrefix + email

	gen, cacheable := "", false
	vals, err := c.client.MGet(ctx, key, lookupGenKeyPrefix+email).Result()
	switch {
	case err != nil:
		c.metrics.IncrementLookupCache("error")
		c.logger.WarnContext(ctx, "lookup cache read failed", "error", err)
	case vals[0] != nil:
		var rows []models.LookupRow
		if raw, ok := vals[0].(string); ok && json.Unmarshal([]byte(raw), &rows) == nil {
			c.metrics.IncrementLookupCache("hit")
			return rows, nil
		}
		c.metrics.IncrementLookupCache("error")
		gen, cacheable = generationOf(vals[1]), true
	default:
		c.metrics.IncrementLookupCache("miss")
		gen, cacheable = generationOf(vals[1]), true
	}

	// The fill outlives any single caller; joined callers must not inherit its cancellation.
	ch := c.group.DoChan(key+"@"+gen, func() (any, error) {
		fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupFillTimeout)
		defer cancel()

		rows, err := c.source.ListByEmail(fillCtx, email)
		if err != nil {
			return nil, err
		}
		if cacheable {
			c.store(fillCtx, email, gen, rows)
		}
		return rows, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]models.LookupRow), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// store writes rows under key if the email's generation still equals gen.
func (c *CachedLookup) store(ctx context.Context, email, gen string, rows []models.LookupRow) {
	payload, err := json.Marshal(rows)
	if err != nil {
		return
	}
	key, genKey := lookupKeyPrefix+email, lookupGenKeyPrefix+email

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Result()
		if errors.Is(err, redis.Nil) {
			current = "0"
		} else if err != nil {
			return err
		}
		if current != gen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, c.ttl)
			return nil
		})
		return err
	}, genKey)
	switch {
	case err == nil:
	case errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
		c.metrics.IncrementLookupCache("stale")
	default:
		c.logger.WarnContext(ctx, "lookup cache write failed", "error", err)
	}
}

// Invalidate drops the cached rows for email and bumps its generation so that fills already
// in flight are discarded. Called after a claim for that email commits.
func (c *CachedLookup) Invalidate(ctx context.Context, email string) error {
	genKey := lookupGenKeyPrefix + email
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, lookupGenerationTTL)
		pipe.Del(ctx, lookupKeyPrefix+email)
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate lookup cache: %w", err)
	}
	return nil
}

func generationOf(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return "0"
}
