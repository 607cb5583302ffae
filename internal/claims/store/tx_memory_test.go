package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "claimverifier/pkg/domain-errors"
)

func TestShardedTx(t *testing.T) {
	t.Run("serializes work on the same key", func(t *testing.T) {
		tx := NewShardedTx(time.Second)
		var inFlight, maxSeen atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = tx.RunInTx(context.Background(), "POL-1", func(context.Context) error {
					n := inFlight.Add(1)
					if n > maxSeen.Load() {
						maxSeen.Store(n)
					}
					time.Sleep(time.Millisecond)
					inFlight.Add(-1)
					return nil
				})
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), maxSeen.Load())
	})

	t.Run("applies default deadline", func(t *testing.T) {
		tx := NewShardedTx(0)
		err := tx.RunInTx(context.Background(), "k", func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			assert.True(t, ok)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("cancelled context never runs fn", func(t *testing.T) {
		tx := NewShardedTx(time.Second)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		ran := false
		err := tx.RunInTx(ctx, "k", func(context.Context) error { ran = true; return nil })
		assert.False(t, ran)
		assert.True(t, dErrors.HasCode(err, dErrors.CodePersistence))
	})

	t.Run("lock wait honours the deadline", func(t *testing.T) {
		tx := NewShardedTx(time.Minute)
		held := make(chan struct{})
		release := make(chan struct{})
		go func() {
			_ = tx.RunInTx(context.Background(), "outbox", func(context.Context) error {
				close(held)
				<-release
				return nil
			})
		}()
		<-held
		defer close(release)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		ran := false
		start := time.Now()
		err := tx.RunInTx(ctx, "outbox", func(context.Context) error { ran = true; return nil })

		assert.False(t, ran)
		assert.True(t, dErrors.HasCode(err, dErrors.CodePersistence))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 5*time.Second)
	})
}
