// Package stream bridges a blocking text producer running on its own
// goroutine to a consumer that reads fragments in order.
//
// Start runs the producer and hands fragments over a bounded channel. The
// consumer either drains it with Relay, ranges over Stream.All, or reads
// Fragments directly. The channel is closed exactly once, after the
// producer's terminal error has been recorded, so a consumer that sees the
// close can always read the outcome with Wait or Err.
package stream

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"runtime/debug"

	"github.com/samcharles93/streamgen/internal/logger"
)

// DefaultBuffer is the handoff channel capacity used when Options.Buffer is
// not positive.
const DefaultBuffer = 64

// ErrProducerPanic wraps a panic recovered from a producer.
var ErrProducerPanic = errors.New("producer panicked")

// Producer generates fragments by calling emit in order. emit returns an
// error once the consumer is gone; the producer should stop and return it.
type Producer func(ctx context.Context, emit func(fragment string) error) error

type Options struct {
	// Buffer is the number of fragments the producer may run ahead of the
	// consumer.
	Buffer int
	// Logger receives worker failures. Defaults to the logger in ctx.
	Logger logger.Logger
}

// Stream is a running producer. All methods are safe for concurrent use,
// but there must be a single consumer of the fragments.
type Stream struct {
	ch     chan string
	done   chan struct{}
	cancel context.CancelFunc
	err    error
}

// Start runs produce on a new goroutine. The producer's context is derived
// from ctx and is also cancelled by Cancel, by a failing Relay sink and by
// breaking out of All.
func Start(ctx context.Context, produce Producer, opts Options) *Stream {
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	log := opts.Logger
	if log == nil {
		log = logger.FromContext(ctx)
	}
	wctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		ch:     make(chan string, opts.Buffer),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go s.run(wctx, produce, log)
	return s
}

func (s *Stream) run(ctx context.Context, produce Producer, log logger.Logger) {
	defer s.cancel()
	defer close(s.done)
	defer close(s.ch)
	defer func() {
		if rec := recover(); rec != nil {
			s.err = fmt.Errorf("%w: %v", ErrProducerPanic, rec)
			log.Error("generation worker panicked", "panic", rec, "stack", string(debug.Stack()))
		}
	}()

	emit := func(fragment string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case s.ch <- fragment:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := produce(ctx, emit); err != nil {
		s.err = err
		if errors.Is(err, context.Canceled) {
			log.Debug("generation worker cancelled")
		} else {
			log.Error("generation worker failed", "error", err)
		}
	}
}

// Fragments returns the handoff channel. It is closed when the producer
// returns.
func (s *Stream) Fragments() <-chan string {
	return s.ch
}

// Wait blocks until the producer has returned and reports its error.
func (s *Stream) Wait() error {
	<-s.done
	return s.err
}

// Err reports the producer's error without blocking. It is nil while the
// producer is still running.
func (s *Stream) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Done is closed once the producer has returned.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Cancel asks the producer to stop. Fragments already buffered stay
// readable.
func (s *Stream) Cancel() {
	s.cancel()
}

// All returns the fragments as a sequence that yields each one as it
// arrives. Stopping the iteration early cancels the producer. The
// producer's error is available from Wait afterwards.
func (s *Stream) All() iter.Seq[string] {
	return func(yield func(string) bool) {
		for fragment := range s.ch {
			if !yield(fragment) {
				s.cancel()
				return
			}
		}
	}
}
