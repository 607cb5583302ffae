package store

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"claimverifier/internal/claims/metrics"
	"claimverifier/internal/claims/models"
)

type countingSource struct {
	calls atomic.Int32
	rows  []models.LookupRow
	err   error
}

func (c *countingSource) ListByEmail(context.Context, string) ([]models.LookupRow, error) {
	c.calls.Add(1)
	return c.rows, c.err
}

// gatedSource blocks its first read after snapshotting rows, until release is closed.
type gatedSource struct {
	mu      sync.Mutex
	rows    []models.LookupRow
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func newGatedSource() *gatedSource {
	return &gatedSource{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedSource) ListByEmail(ctx context.Context, _ string) ([]models.LookupRow, error) {
	n := g.calls.Add(1)
	g.mu.Lock()
	snapshot := slices.Clone(g.rows)
	g.mu.Unlock()
	if n == 1 {
		close(g.entered)
		<-g.release
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (g *gatedSource) add(row models.LookupRow) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rows = append(g.rows, row)
}

type lookupResult struct {
	rows []models.LookupRow
	err  error
}

type CachedLookupSuite struct {
	suite.Suite
	mr     *miniredis.Miniredis
	client *redis.Client
	source *countingSource
	cache  *CachedLookup
}

func TestCachedLookupSuite(t *testing.T) {
	suite.Run(t, new(CachedLookupSuite))
}

func (s *CachedLookupSuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	s.client = redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.source = &countingSource{rows: []models.LookupRow{{
		Name:           "Jane Doe",
		PolicyNumber:   "POL-1",
		ClaimDate:      time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		ClaimAmount:    decimal.RequireFromString("120.50"),
		ClaimReason:    "dental",
		Decision:       models.DecisionApproved,
		AvailableLimit: decimal.RequireFromString("879.50"),
	}}}
	s.cache = NewCachedLookup(s.source, s.client, time.Minute, nil, metrics.NewWith(prometheus.NewRegistry()))
}

func (s *CachedLookupSuite) TearDownTest() {
	_ = s.client.Close()
}

func (s *CachedLookupSuite) TestReadThrough() {
	ctx := context.Background()

	first, err := s.cache.ListByEmail(ctx, "jane@example.com")
	s.Require().NoError(err)
	second, err := s.cache.ListByEmail(ctx, "jane@example.com")
	s.Require().NoError(err)

	s.Equal(int32(1), s.source.calls.Load())
	s.Require().Len(second, 1)
	s.True(second[0].ClaimAmount.Equal(first[0].ClaimAmount))
	s.True(second[0].ClaimDate.Equal(first[0].ClaimDate))
	s.True(s.mr.Exists(lookupKeyPrefix + "jane@example.com"))
}

func (s *CachedLookupSuite) TestInvalidate() {
	ctx := context.Background()
	_, err := s.cache.ListByEmail(ctx, "jane@example.com")
	s.Require().NoError(err)

	s.Require().NoError(s.cache.Invalidate(ctx, "jane@example.com"))
	_, err = s.cache.ListByEmail(ctx, "jane@example.com")
	s.Require().NoError(err)
	s.Equal(int32(2), s.source.calls.Load())
}

func (s *CachedLookupSuite) TestRedisDownFallsBackToSource() {
	s.mr.Close()
	rows, err := s.cache.ListByEmail(context.Background(), "jane@example.com")
	s.Require().NoError(err)
	s.Len(rows, 1)
}

func (s *CachedLookupSuite) TestSourceErrorNotCached() {
	s.source.err = errors.New("db down")
	_, err := s.cache.ListByEmail(context.Background(), "jane@example.com")
	s.Error(err)
	s.False(s.mr.Exists(lookupKeyPrefix + "jane@example.com"))
}

func (s *CachedLookupSuite) TestInvalidateDuringFillDiscardsStaleRows() {
	ctx := context.Background()
	src := newGatedSource()
	cache := NewCachedLookup(src, s.client, time.Minute, nil, metrics.NewWith(prometheus.NewRegistry()))

	done := make(chan lookupResult, 1)
	go func() {
		rows, err := cache.ListByEmail(ctx, "jane@example.com")
		done <- lookupResult{rows, err}
	}()
	<-src.entered

	// a claim commits while the first read is still in flight
	src.add(s.source.rows[0])
	s.Require().NoError(cache.Invalidate(ctx, "jane@example.com"))
	close(src.release)

	first := <-done
	s.Require().NoError(first.err)
	s.Empty(first.rows)
	s.False(s.mr.Exists(lookupKeyPrefix+"jane@example.com"), "rows read before the invalidation must not be cached")

	rows, err := cache.ListByEmail(ctx, "jane@example.com")
	s.Require().NoError(err)
	s.Len(rows, 1)
	s.Equal(int32(2), src.calls.Load())
}

func (s *CachedLookupSuite) TestCancelledCallerDoesNotAbortSharedFill() {
	src := newGatedSource()
	src.add(s.source.rows[0])
	cache := NewCachedLookup(src, s.client, time.Minute, nil, metrics.NewWith(prometheus.NewRegistry()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan lookupResult, 1)
	go func() {
		rows, err := cache.ListByEmail(ctx, "jane@example.com")
		done <- lookupResult{rows, err}
	}()
	<-src.entered
	cancel()

	first := <-done
	s.ErrorIs(first.err, context.Canceled)

	close(src.release)
	rows, err := cache.ListByEmail(context.Background(), "jane@example.com")
	s.Require().NoError(err)
	s.Len(rows, 1)
	s.Equal(int32(1), src.calls.Load(), "the fill started for the cancelled caller should still serve later callers")
}
