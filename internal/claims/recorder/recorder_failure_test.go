package recorder_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"claimverifier/internal/claims/ledger"
	"claimverifier/internal/claims/metrics"
	"claimverifier/internal/claims/models"
	"claimverifier/internal/claims/recorder"
	"claimverifier/internal/claims/recorder/mocks"
	"claimverifier/internal/claims/store"
	"claimverifier/internal/claims/validation"
	"claimverifier/internal/claims/verifier"
	id "claimverifier/pkg/domain"
	dErrors "claimverifier/pkg/domain-errors"
)

type RecorderFailureSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	policies    *store.InMemoryStore
	claims      *mocks.MockClaimStore
	outbox      *mocks.MockOutboxWriter
	sink        *mocks.MockSink
	lookup      *mocks.MockLookup
	invalidator *mocks.MockLookupInvalidator
	metrics     *metrics.Metrics
	rec         *recorder.Recorder
}

func TestRecorderFailureSuite(t *testing.T) {
	suite.Run(t, new(RecorderFailureSuite))
}

func (s *RecorderFailureSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.policies = store.NewInMemory()
	s.claims = mocks.NewMockClaimStore(s.ctrl)
	s.outbox = mocks.NewMockOutboxWriter(s.ctrl)
	s.sink = mocks.NewMockSink(s.ctrl)
	s.lookup = mocks.NewMockLookup(s.ctrl)
	s.invalidator = mocks.NewMockLookupInvalidator(s.ctrl)
	s.metrics = metrics.NewWith(prometheus.NewRegistry())

	l, err := ledger.New(s.policies)
	s.Require().NoError(err)
	s.rec, err = recorder.New(recorder.Deps{
		Validator: validation.New(),
		Ledger:    l,
		Verifier:  verifier.New(),
		Claims:    s.claims,
		Tx:        store.NewShardedTx(time.Second),
		Outbox:    s.outbox,
	},
		recorder.WithMetrics(s.metrics),
		recorder.WithSinks(s.sink),
		recorder.WithLookup(s.lookup, s.invalidator),
	)
	s.Require().NoError(err)
}

func (s *RecorderFailureSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *RecorderFailureSuite) insertOK() {
	s.claims.EXPECT().InsertClaim(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, c models.Claim) (*models.Claim, error) {
			c.ID = id.ClaimID{1}
			return &c, nil
		})
}

func (s *RecorderFailureSuite) TestInsertFailureIsPersistenceError() {
	s.claims.EXPECT().InsertClaim(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection reset"))

	_, err := s.rec.Submit(context.Background(), submission("POL-1", "1000", "10"))
	s.True(dErrors.HasCode(err, dErrors.CodePersistence))
}

func (s *RecorderFailureSuite) TestOutboxFailureIsPersistenceError() {
	s.insertOK()
	s.outbox.EXPECT().Append(gomock.Any(), gomock.Any()).Return(errors.New("outbox table missing"))

	_, err := s.rec.Submit(context.Background(), submission("POL-2", "1000", "10"))
	s.True(dErrors.HasCode(err, dErrors.CodePersistence))
}

func (s *RecorderFailureSuite) TestInconsistencyStopsBeforeSinks() {
	s.insertOK()
	s.outbox.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)
	s.claims.EXPECT().Balance(gomock.Any(), gomock.Any()).Return(models.LedgerBalance{
		CoverageAmount: decimal.NewFromInt(1000),
		AvailableLimit: decimal.NewFromInt(990),
		ClaimedTotal:   decimal.NewFromInt(20),
	}, nil)

	_, err := s.rec.Submit(context.Background(), submission("POL-3", "1000", "10"))
	s.True(dErrors.HasCode(err, dErrors.CodeInconsistency))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Inconsistencies))
}

func (s *RecorderFailureSuite) TestCommitInvalidatesLookupAndRunsSinks() {
	s.insertOK()
	s.outbox.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)
	s.claims.EXPECT().Balance(gomock.Any(), gomock.Any()).Return(models.LedgerBalance{
		CoverageAmount: decimal.NewFromInt(1000),
		AvailableLimit: decimal.NewFromInt(990),
		ClaimedTotal:   decimal.NewFromInt(10),
	}, nil)
	s.invalidator.EXPECT().Invalidate(gomock.Any(), "jane@example.com").Return(errors.New("redis down"))
	s.sink.EXPECT().Name().Return("pdf").AnyTimes()
	s.sink.EXPECT().Write(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, rec models.ClaimRecord) error {
			s.Equal("POL-4", rec.Policy.PolicyNumber)
			s.True(rec.Policy.AvailableLimit.Equal(decimal.NewFromInt(990)))
			s.Equal(models.DecisionApproved, rec.Result.Decision)
			return nil
		})

	receipt, err := s.rec.Submit(context.Background(), submission("POL-4", "1000", "10"))
	s.Require().NoError(err)
	s.Equal(models.DecisionApproved, receipt.Decision)
}

func (s *RecorderFailureSuite) TestClaimsByEmailUsesLookup() {
	s.Run("lookup rows", func() {
		s.lookup.EXPECT().ListByEmail(gomock.Any(), "jane@example.com").Return([]models.LookupRow{{Name: "Jane"}}, nil)
		rows, err := s.rec.ClaimsByEmail(context.Background(), "Jane@example.com")
		s.Require().NoError(err)
		s.Len(rows, 1)
	})

	s.Run("lookup failure", func() {
		s.lookup.EXPECT().ListByEmail(gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))
		_, err := s.rec.ClaimsByEmail(context.Background(), "jane@example.com")
		s.True(dErrors.HasCode(err, dErrors.CodePersistence))
	})
}

func (s *RecorderFailureSuite) TestValidationRejectionIsCounted() {
	_, err := s.rec.Submit(context.Background(), submission("", "1000", "10"))
	s.Require().Error(err)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.ValidationRejections.WithLabelValues("missing_field")))
}

func TestNewRequiresDeps(t *testing.T) {
	_, err := recorder.New(recorder.Deps{})
	if err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}
