package relay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

// BrokerConfig holds broker connection settings. The publisher and the relay
// subscriber each open their own client: SUBSCRIBE occupies a connection
// exclusively, so the two sides never share one.
type BrokerConfig struct {
	URL            string
	ConnectRetries uint64
	PingTimeout    time.Duration
}

// NewBrokerClient connects to the broker and verifies it with a ping,
// retrying with exponential backoff before giving up.
func NewBrokerClient(ctx context.Context, cfg BrokerConfig, logger *log.Logger) (*redis.Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("broker: empty URL")
	}
	if logger == nil {
		logger = log.Default()
	}
	if cfg.ConnectRetries == 0 {
		cfg.ConnectRetries = 5
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 5 * time.Second
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("broker: parse url: %w", err)
	}
	client := redis.NewClient(opts)

	bo := backoff.NewExponentialBackOff()
	err = backoff.Retry(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			logger.Printf("broker: ping failed, retrying: %v", err)
			return err
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, cfg.ConnectRetries), ctx))
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("broker: could not connect after retries: %w", err)
	}

	logger.Printf("broker: connected to %s", opts.Addr)
	return client, nil
}

// BrokerHealthcheck returns a ping-based probe for health endpoints.
func BrokerHealthcheck(client *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if client == nil {
			return errors.New("broker: no client")
		}
		return client.Ping(ctx).Err()
	}
}
