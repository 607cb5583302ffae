package store

import (
	"context"
	"time"

	dErrors "claimverifier/pkg/domain-errors"
)

// numTxShards spreads lock keys over independent locks so unrelated policies do not
// contend.
const numTxShards = 128

const defaultTxTimeout = 5 * time.Second

// ShardedTx serializes units of work that share a lock key. It is the in-memory stand-in for
// a database transaction: it provides isolation but no rollback, so callers must do every
// fallible check before the first write. Each shard is a one-slot channel so waiting for it
// honours the context deadline.
type ShardedTx struct {
	shards  [numTxShards]chan struct{}
	timeout time.Duration
}

func NewShardedTx(timeout time.Duration) *ShardedTx {
	if timeout <= 0 {
		timeout = defaultTxTimeout
	}
	t := &ShardedTx{timeout: timeout}
	for i := range t.shards {
		t.shards[i] = make(chan struct{}, 1)
	}
	return t
}

func (t *ShardedTx) RunInTx(ctx context.Context, lockKey string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "transaction aborted: context done")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	shard := t.shards[hashKey(lockKey)%numTxShards]
	select {
	case shard <- struct{}{}:
	case <-ctx.Done():
		return dErrors.Wrap(ctx.Err(), dErrors.CodePersistence, "transaction aborted: lock wait timed out")
	}
	defer func() { <-shard }()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "transaction aborted: context done")
	}
	return fn(ctx)
}

// hashKey is FNV-1a.
func hashKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
