package stream

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samcharles93/streamgen/internal/logger"
)

var quiet = Options{Logger: logger.Discard()}

func counting(n int) Producer {
	return func(ctx context.Context, emit func(string) error) error {
		for i := 0; i < n; i++ {
			if err := emit(fmt.Sprintf("f%d", i)); err != nil {
				return err
			}
		}
		return nil
	}
}

// endless emits until the consumer goes away.
func endless(ctx context.Context, emit func(string) error) error {
	for i := 0; ; i++ {
		if err := emit(fmt.Sprintf("f%d", i)); err != nil {
			return err
		}
	}
}

func waitDone(t *testing.T, s *Stream) error {
	t.Helper()
	select {
	case <-s.Done():
		return s.Err()
	case <-time.After(5 * time.Second):
		t.Fatal("producer did not stop")
		return nil
	}
}

func TestAllPreservesOrder(t *testing.T) {
	t.Parallel()

	s := Start(context.Background(), counting(200), Options{Buffer: 4, Logger: logger.Discard()})
	var got []string
	for f := range s.All() {
		got = append(got, f)
	}
	if len(got) != 200 {
		t.Fatalf("expected 200 fragments, got %d", len(got))
	}
	for i, f := range got {
		if f != fmt.Sprintf("f%d", i) {
			t.Fatalf("fragment %d out of order: %q", i, f)
		}
	}
	if err := s.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	// Closed channel stays closed.
	if _, ok := <-s.Fragments(); ok {
		t.Fatal("channel should be closed")
	}
}

func TestEmptyProducer(t *testing.T) {
	t.Parallel()

	s := Start(context.Background(), counting(0), quiet)
	n, err := Relay(context.Background(), s, func(string) error { return nil }, RelayOptions{Logger: logger.Discard()})
	if n != 0 || err != nil {
		t.Fatalf("expected 0, nil; got %d, %v", n, err)
	}
}

func TestRelayReturnsProducerError(t *testing.T) {
	t.Parallel()

	boom := errors.New("model failure")
	s := Start(context.Background(), func(ctx context.Context, emit func(string) error) error {
		_ = emit("a")
		_ = emit("b")
		return boom
	}, quiet)

	var got []string
	n, err := Relay(context.Background(), s, func(f string) error {
		got = append(got, f)
		return nil
	}, RelayOptions{Logger: logger.Discard()})
	if !errors.Is(err, boom) {
		t.Fatalf("expected producer error, got %v", err)
	}
	if n != 2 || !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("fragments before the failure should be delivered, got %d %q", n, got)
	}
}

func TestProducerPanicBecomesError(t *testing.T) {
	t.Parallel()

	s := Start(context.Background(), func(ctx context.Context, emit func(string) error) error {
		_ = emit("only")
		panic("kaboom")
	}, quiet)

	n, err := Relay(context.Background(), s, func(string) error { return nil }, RelayOptions{Logger: logger.Discard()})
	if !errors.Is(err, ErrProducerPanic) {
		t.Fatalf("expected ErrProducerPanic, got %v", err)
	}
	if n != 1 {
		t.Fatalf("expected the fragment before the panic, got %d", n)
	}
	if _, ok := <-s.Fragments(); ok {
		t.Fatal("channel should be closed after a panic")
	}
}

func TestCancelStopsProducer(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	s := Start(ctx, endless, Options{Buffer: 1, Logger: logger.Discard()})
	<-s.Fragments()
	cancel()
	if err := waitDone(t, s); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRelayStopsOnContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	s := Start(context.Background(), endless, quiet)
	n, err := Relay(ctx, s, func(string) error {
		cancel()
		return nil
	}, RelayOptions{Logger: logger.Discard()})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if n < 1 {
		t.Fatalf("expected at least one fragment, got %d", n)
	}
	if err := waitDone(t, s); !errors.Is(err, context.Canceled) {
		t.Fatalf("producer should see cancellation, got %v", err)
	}
}

func TestSinkFailureCancelsProducer(t *testing.T) {
	t.Parallel()

	broken := errors.New("client went away")
	s := Start(context.Background(), endless, quiet)
	calls := 0
	n, err := Relay(context.Background(), s, func(string) error {
		calls++
		if calls == 3 {
			return broken
		}
		return nil
	}, RelayOptions{Logger: logger.Discard()})
	if !errors.Is(err, broken) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 forwarded fragments, got %d", n)
	}
	if err := waitDone(t, s); !errors.Is(err, context.Canceled) {
		t.Fatalf("producer should be cancelled, got %v", err)
	}
}

func TestBreakingOutOfAllCancelsProducer(t *testing.T) {
	t.Parallel()

	s := Start(context.Background(), endless, quiet)
	seen := 0
	for range s.All() {
		seen++
		if seen == 2 {
			break
		}
	}
	if err := waitDone(t, s); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBoundedBufferBlocksProducer(t *testing.T) {
	t.Parallel()

	var sent atomic.Int32
	s := Start(context.Background(), func(ctx context.Context, emit func(string) error) error {
		for {
			if err := emit("x"); err != nil {
				return err
			}
			sent.Add(1)
		}
	}, Options{Buffer: 1, Logger: logger.Discard()})

	time.Sleep(50 * time.Millisecond)
	if got := sent.Load(); got > 1 {
		t.Fatalf("producer ran %d fragments ahead of a buffer of 1", got)
	}
	s.Cancel()
	if err := waitDone(t, s); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRelayPacing(t *testing.T) {
	t.Parallel()

	s := Start(context.Background(), counting(4), quiet)
	start := time.Now()
	n, err := Relay(context.Background(), s, func(string) error { return nil }, RelayOptions{
		Delay:  20 * time.Millisecond,
		Logger: logger.Discard(),
	})
	if err != nil || n != 4 {
		t.Fatalf("relay: n=%d err=%v", n, err)
	}
	// The first fragment is immediate; each of the other three waits.
	if elapsed := time.Since(start); elapsed < 55*time.Millisecond {
		t.Fatalf("pacing not applied, elapsed %v", elapsed)
	}
}

func TestErrIsNilWhileRunning(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	s := Start(context.Background(), func(ctx context.Context, emit func(string) error) error {
		<-release
		return errors.New("late")
	}, quiet)
	if err := s.Err(); err != nil {
		t.Fatalf("Err should be nil while running, got %v", err)
	}
	close(release)
	if err := s.Wait(); err == nil {
		t.Fatal("expected the producer error after Wait")
	}
}

func TestRelayDoesNotDelayFirstFragment(t *testing.T) {
	t.Parallel()

	s := Start(context.Background(), counting(2), quiet)
	start := time.Now()
	var first time.Duration
	_, err := Relay(context.Background(), s, func(string) error {
		if first == 0 {
			first = time.Since(start)
		}
		return nil
	}, RelayOptions{Delay: 500 * time.Millisecond, Logger: logger.Discard()})
	if err != nil {
		t.Fatalf("relay: %v", err)
	}
	if first >= 250*time.Millisecond {
		t.Fatalf("first fragment waited %v", first)
	}
}
