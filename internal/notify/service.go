package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/uxav/AVnetCore-sub001/internal/av"
	"github.com/uxav/AVnetCore-sub001/internal/infrastructure/logging"
)

// Sink receives events from the Service.
type Sink interface {
	Notify(ctx context.Context, ev av.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev av.Event) error

// Notify calls f(ctx, ev).
func (f SinkFunc) Notify(ctx context.Context, ev av.Event) error {
	return f(ctx, ev)
}

type namedSink struct {
	name string
	sink Sink
}

// Service fans events out to registered sinks in registration order.
//
// Thread Safety: all methods are safe for concurrent use.
type Service struct {
	logger *logging.Logger

	mu    sync.RWMutex
	sinks []namedSink
}

var _ av.Notifier = (*Service)(nil)

// NewService creates an empty Service. A nil logger discards output.
func NewService(logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{logger: logger}
}

// Register adds a sink. Registering a name twice replaces the earlier sink.
func (s *Service) Register(name string, sink Sink) {
	if sink == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.sinks {
		if s.sinks[i].name == name {
			s.sinks[i].sink = sink
			return
		}
	}
	s.sinks = append(s.sinks, namedSink{name: name, sink: sink})
}

// Sinks returns the registered sink names in delivery order.
func (s *Service) Sinks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, len(s.sinks))
	for i, ns := range s.sinks {
		names[i] = ns.name
	}
	return names
}

// Notify delivers ev to every sink. Sink errors and panics are collected
// and returned joined; delivery always continues to the remaining sinks.
func (s *Service) Notify(ctx context.Context, ev av.Event) error {
	s.mu.RLock()
	sinks := make([]namedSink, len(s.sinks))
	copy(sinks, s.sinks)
	s.mu.RUnlock()

	var errs []error
	for _, ns := range sinks {
		if err := s.deliver(ctx, ns, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) deliver(ctx context.Context, ns namedSink, ev av.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("event sink panic recovered", "sink", ns.name, "event", ev.Type, "panic", r)
			err = fmt.Errorf("sink %s: panic: %v", ns.name, r)
		}
	}()
	if err := ns.sink.Notify(ctx, ev); err != nil {
		s.logger.Debug("event sink failed", "sink", ns.name, "event", ev.Type, "error", err)
		return fmt.Errorf("sink %s: %w", ns.name, err)
	}
	return nil
}
