//go:build integration

package kafka_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"claimverifier/internal/platform/config"
	"claimverifier/internal/platform/kafka"
	"claimverifier/internal/platform/outbox"
	"claimverifier/pkg/testutil/containers"
)

type ProducerSuite struct {
	suite.Suite
	broker   string
	producer *kafka.Producer
}

func TestProducerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ProducerSuite))
}

func (s *ProducerSuite) SetupSuite() {
	s.broker = containers.GetManager().GetRedpanda(s.T()).Broker
	p, err := kafka.NewProducer(config.KafkaConfig{Brokers: []string{s.broker}, Topic: "claims.recorded"}, nil)
	s.Require().NoError(err)
	s.producer = p

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.Require().NoError(p.EnsureTopic(ctx, 1, 1))
	s.Require().NoError(p.EnsureTopic(ctx, 1, 1), "second call tolerates an existing topic")
}

func (s *ProducerSuite) TearDownSuite() {
	s.producer.Close()
}

func (s *ProducerSuite) TestPublishDeliversRecord() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	event, err := outbox.NewEvent("claim_recorded", "POL-1", map[string]string{"decision": "Approved"}, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.producer.Publish(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.broker),
		kgo.ConsumeTopics("claims.recorded"),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	for {
		fetches := consumer.PollFetches(ctx)
		s.Require().NoError(ctx.Err())
		var found bool
		fetches.EachRecord(func(r *kgo.Record) {
			for _, h := range r.Headers {
				if h.Key == "event_id" && string(h.Value) == event.ID.String() {
					found = true
					s.Equal("POL-1", string(r.Key))
					s.JSONEq(`{"decision":"Approved"}`, string(r.Value))
				}
			}
		})
		if found {
			return
		}
	}
}
