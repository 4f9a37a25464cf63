package relay

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"station-cloud/internal/observability/metrics"
	observation "station-cloud/internal/observation/domain"
)

const (
	publishMaxRetries   = 3
	publishInitialDelay = 100 * time.Millisecond
)

// brokerPublisher is the slice of the broker client the publisher needs.
// *redis.Client satisfies it.
type brokerPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Publisher announces durably stored readings on the broker channel. It runs
// inside the ingestion process and knows nothing about subscribers.
type Publisher struct {
	client  brokerPublisher
	channel string
	logger  *log.Logger
}

// NewPublisher constructs a publisher for the fixed observation channel.
func NewPublisher(client brokerPublisher, logger *log.Logger) *Publisher {
	if logger == nil {
		logger = log.Default()
	}
	return &Publisher{client: client, channel: observation.Channel, logger: logger}
}

// Publish serializes the reading and sends it to the broker, retrying
// transient failures a bounded number of times. Exhaustion is logged and
// swallowed: a publish failure must never roll back or retry the storage
// write that triggered it.
func (p *Publisher) Publish(ctx context.Context, reading observation.Reading) {
	if p == nil || p.client == nil {
		return
	}
	payload, err := observation.Encode(reading)
	if err != nil {
		p.logger.Printf("publisher: refusing invalid reading: %v", err)
		metrics.IncPublish(metrics.ResultError)
		return
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = publishInitialDelay
	bo.RandomizationFactor = 0
	bo.Multiplier = 2

	attempts := 0
	err = backoff.Retry(func() error {
		attempts++
		if attempts > 1 {
			metrics.IncPublishRetry()
		}
		if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
			p.logger.Printf("publisher: attempt %d failed for station %s: %v", attempts, reading.StationID, err)
			return err
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, publishMaxRetries), ctx))
	if err != nil {
		p.logger.Printf("publisher: giving up on station %s after %d attempts: %v", reading.StationID, attempts, err)
		metrics.IncPublish(metrics.ResultError)
		return
	}
	metrics.IncPublish(metrics.ResultSuccess)
}
