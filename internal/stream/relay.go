package stream

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/samcharles93/streamgen/internal/logger"
)

// Sink consumes one fragment. A non-nil error stops the relay.
type Sink func(fragment string) error

type RelayOptions struct {
	// Delay is the minimum spacing between two forwarded fragments. The
	// first fragment is never delayed, unlike a fixed sleep before every
	// fragment, which would also hold back the first one.
	Delay  time.Duration
	Logger logger.Logger
}

// Relay forwards every fragment of s to sink in arrival order until the
// producer finishes. It returns the number of fragments forwarded and the
// producer's error. If ctx ends or sink fails, the producer is cancelled and
// that error is returned instead.
func Relay(ctx context.Context, s *Stream, sink Sink, opts RelayOptions) (int, error) {
	log := opts.Logger
	if log == nil {
		log = logger.FromContext(ctx)
	}
	var limiter *rate.Limiter
	if opts.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.Delay), 1)
	}

	n := 0
	for {
		if err := ctx.Err(); err != nil {
			s.cancel()
			return n, err
		}
		select {
		case fragment, ok := <-s.ch:
			if !ok {
				return n, s.Wait()
			}
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					s.cancel()
					return n, err
				}
			}
			log.Debug("fragment", "index", n, "text", fragment)
			if err := sink(fragment); err != nil {
				s.cancel()
				return n, err
			}
			n++
		case <-ctx.Done():
			s.cancel()
			return n, ctx.Err()
		}
	}
}
