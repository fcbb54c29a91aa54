package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/student-portal/pkg/middleware/requestid"
)

// Observer receives timing for every store call.
type Observer interface {
	ObserveStoreOp(op, collection string, duration time.Duration, err error)
}

type instrumented struct {
	next     RemoteStore
	observer Observer
	logger   *zap.Logger
}

// Instrument wraps a store with metrics and debug logging.
func Instrument(next RemoteStore, observer Observer, logger *zap.Logger) RemoteStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &instrumented{next: next, observer: observer, logger: logger}
}

func (s *instrumented) FetchAll(ctx context.Context, collection string) ([]Record, error) {
	start := time.Now()
	records, err := s.next.FetchAll(ctx, collection)
	s.observe(ctx, "fetch_all", collection, time.Since(start), err)
	return records, err
}

func (s *instrumented) WriteField(ctx context.Context, collection, id, field string, value interface{}) error {
	start := time.Now()
	err := s.next.WriteField(ctx, collection, id, field, value)
	s.observe(ctx, "write_field", collection, time.Since(start), err)
	return err
}

// Close forwards to the wrapped store when it holds resources.
func (s *instrumented) Close() error {
	if closer, ok := s.next.(Closer); ok {
		return closer.Close()
	}
	return nil
}

func (s *instrumented) observe(ctx context.Context, op, collection string, d time.Duration, err error) {
	if s.observer != nil {
		s.observer.ObserveStoreOp(op, collection, d, err)
	}
	if err != nil {
		s.logger.Debug("store call failed",
			zap.String("op", op),
			zap.String("collection", collection),
			zap.String("request_id", requestid.FromContext(ctx)),
			zap.Duration("duration", d),
			zap.Error(err),
		)
	}
}
