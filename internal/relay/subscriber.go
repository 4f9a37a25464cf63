package relay

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"station-cloud/internal/observability/metrics"
	observation "station-cloud/internal/observation/domain"
)

// Stream event types.
const (
	EventObservation = "observation"
	EventConnection  = "connection"
)

const (
	defaultWarnThreshold    = 200 * time.Millisecond
	defaultReconnectInitial = 500 * time.Millisecond
	defaultReconnectMax     = 30 * time.Second
)

// Subscriber bridges the broker channel into local fan-out. It holds a
// dedicated pub/sub connection for its whole lifetime; the subscription
// occupies that connection exclusively.
type Subscriber struct {
	client  *redis.Client
	channel string
	hub     *Hub
	logger  *log.Logger

	warnThreshold    time.Duration
	reconnectInitial time.Duration
	reconnectMax     time.Duration

	ready atomic.Bool
}

// SubscriberOption tunes a Subscriber.
type SubscriberOption func(*Subscriber)

// WithWarnThreshold sets the broadcast latency above which a warning is logged.
func WithWarnThreshold(d time.Duration) SubscriberOption {
	return func(s *Subscriber) {
		if d > 0 {
			s.warnThreshold = d
		}
	}
}

// WithReconnectBackoff sets the reconnect delay schedule.
func WithReconnectBackoff(initial, max time.Duration) SubscriberOption {
	return func(s *Subscriber) {
		if initial > 0 {
			s.reconnectInitial = initial
		}
		if max > 0 {
			s.reconnectMax = max
		}
	}
}

// NewSubscriber constructs a relay subscriber for the fixed observation channel.
func NewSubscriber(client *redis.Client, hub *Hub, logger *log.Logger, opts ...SubscriberOption) (*Subscriber, error) {
	if client == nil {
		return nil, errors.New("relay subscriber: nil broker client")
	}
	if hub == nil {
		return nil, errors.New("relay subscriber: nil hub")
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Subscriber{
		client:           client,
		channel:          observation.Channel,
		hub:              hub,
		logger:           logger,
		warnThreshold:    defaultWarnThreshold,
		reconnectInitial: defaultReconnectInitial,
		reconnectMax:     defaultReconnectMax,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Ready reports whether the broker subscription is live. The stream endpoint
// gates new connections on it.
func (s *Subscriber) Ready() bool {
	return s != nil && s.ready.Load()
}

// Run subscribes and relays messages until the context is cancelled.
// Connection loss triggers unbounded reconnection with capped exponential
// backoff; while disconnected Ready reports false and no messages are relayed.
func (s *Subscriber) Run(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.reconnectInitial
	bo.MaxInterval = s.reconnectMax
	bo.MaxElapsedTime = 0 // retry forever

	for ctx.Err() == nil {
		pubsub := s.client.Subscribe(ctx, s.channel)
		if _, err := pubsub.Receive(ctx); err != nil {
			_ = pubsub.Close()
			if ctx.Err() != nil {
				return
			}
			s.setReady(false)
			metrics.IncBrokerReconnect()
			wait := bo.NextBackOff()
			s.logger.Printf("relay subscriber: subscribe to %s failed, retrying in %s: %v", s.channel, wait, err)
			if !sleepCtx(ctx, wait) {
				return
			}
			continue
		}

		s.setReady(true)
		bo.Reset()
		s.logger.Printf("relay subscriber: subscribed to %s", s.channel)

		s.receiveLoop(ctx, pubsub)
		_ = pubsub.Close()
		s.setReady(false)
		if ctx.Err() != nil {
			return
		}

		metrics.IncBrokerReconnect()
		wait := bo.NextBackOff()
		s.logger.Printf("relay subscriber: broker connection lost, reconnecting in %s", wait)
		if !sleepCtx(ctx, wait) {
			return
		}
	}
}

// receiveLoop processes one message at a time: validate, then broadcast. The
// next message is not read before the current broadcast pass finishes, so
// broker ordering is preserved into the fan-out.
func (s *Subscriber) receiveLoop(ctx context.Context, pubsub *redis.PubSub) {
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Printf("relay subscriber: receive error: %v", err)
			}
			return
		}
		s.handleMessage([]byte(msg.Payload))
	}
}

// handleMessage validates one broker payload and fans it out. Malformed
// messages are counted and dropped; they never tear down the subscription.
func (s *Subscriber) handleMessage(payload []byte) {
	reading, err := observation.Decode(payload)
	if err != nil {
		reason := metrics.ReasonSchemaInvalid
		if errors.Is(err, observation.ErrParse) {
			reason = metrics.ReasonParseError
		}
		metrics.IncRelayError(reason)
		s.logger.Printf("relay subscriber: dropping message (%s): %v", reason, err)
		return
	}

	start := time.Now()
	sent := s.hub.BroadcastToAll(EventObservation, payload)
	elapsed := time.Since(start)
	metrics.ObserveBroadcast(elapsed)
	if elapsed > s.warnThreshold {
		s.logger.Printf("relay subscriber: slow broadcast for station %s: %s to %d connections", reading.StationID, elapsed, sent)
	}
}

func (s *Subscriber) setReady(ready bool) {
	s.ready.Store(ready)
	metrics.SetBrokerConnected(ready)
}

// sleepCtx waits for d, returning false if the context ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
