package ingest

import (
	"context"
	"errors"
	"log"

	"station-cloud/internal/observability/metrics"
	observation "station-cloud/internal/observation/domain"
)

// ErrSourceClosed signals a source with no further readings.
var ErrSourceClosed = errors.New("ingest: source closed")

// ReadingStore is the durable-write surface of the storage collaborator.
type ReadingStore interface {
	InsertReading(ctx context.Context, reading observation.Reading) error
}

// ReadingPublisher announces a stored reading to the broker channel. It must
// only be invoked after the durable write succeeded.
type ReadingPublisher interface {
	Publish(ctx context.Context, reading observation.Reading)
}

// ReadingSource yields typed readings. Parsing raw station feeds lives
// behind this interface and is not this service's concern.
type ReadingSource interface {
	Next(ctx context.Context) (observation.Reading, error)
}

// Service binds source, store and publisher with the causal contract:
// store first, publish only on stored success, and a publish failure never
// touches the store.
type Service struct {
	source    ReadingSource
	store     ReadingStore
	publisher ReadingPublisher
	logger    *log.Logger
}

// NewService constructs an ingest service.
func NewService(source ReadingSource, store ReadingStore, publisher ReadingPublisher, logger *log.Logger) (*Service, error) {
	if source == nil {
		return nil, errors.New("ingest: nil source")
	}
	if store == nil {
		return nil, errors.New("ingest: nil store")
	}
	if publisher == nil {
		return nil, errors.New("ingest: nil publisher")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{source: source, store: store, publisher: publisher, logger: logger}, nil
}

// Run drains the source until it closes or the context ends. A failed store
// write drops that reading; it never stops the loop.
func (s *Service) Run(ctx context.Context) error {
	for {
		reading, err := s.source.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrSourceClosed) || ctx.Err() != nil {
				return nil
			}
			s.logger.Printf("ingest: source error: %v", err)
			continue
		}
		if err := s.Ingest(ctx, reading); err != nil {
			s.logger.Printf("ingest: dropping reading from station %s: %v", reading.StationID, err)
		}
	}
}

// Ingest stores one reading and, once durable, publishes it.
func (s *Service) Ingest(ctx context.Context, reading observation.Reading) error {
	if err := reading.Validate(); err != nil {
		metrics.IncIngest(metrics.ResultError)
		return err
	}
	if err := s.store.InsertReading(ctx, reading); err != nil {
		metrics.IncIngest(metrics.ResultError)
		return err
	}
	metrics.IncIngest(metrics.ResultSuccess)

	// Causally after the durable write. Publish failures are handled and
	// swallowed inside the publisher; the stored reading stands either way.
	s.publisher.Publish(ctx, reading)
	return nil
}
