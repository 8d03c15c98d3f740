// Package stream coalesces concurrent generations that share a fingerprint.
//
// The first caller for a key starts the producer; later callers subscribe to
// the same flight. Every subscriber replays the flight's chunks from the
// beginning, in order, then observes the flight's terminal error (io.EOF on
// success). The producer runs on a context detached from any single request;
// it is cancelled only when its last subscriber leaves.
package stream

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/tbourn/go-testgen-gateway/internal/observability"
)

// Producer generates chunks for a flight. It must call emit in order and
// return nil on success.
type Producer func(ctx context.Context, emit func(chunk string)) error

// Group is safe for concurrent use. The zero value is not usable; call
// NewGroup.
type Group struct {
	mu      sync.Mutex
	flights map[string]*flight
}

// NewGroup returns an empty group.
func NewGroup() *Group {
	return &Group{flights: make(map[string]*flight)}
}

type flight struct {
	mu     sync.Mutex
	chunks []string
	done   bool
	err    error
	wake   chan struct{}

	subscribers int
	cancel      context.CancelFunc
}

// Join subscribes to the flight for key, starting produce when none is in
// flight. leader reports whether this call started the producer. parent
// contributes values (trace, logger) but not cancellation.
func (g *Group) Join(parent context.Context, key string, produce Producer) (sub *Subscription, leader bool) {
	g.mu.Lock()
	f, ok := g.flights[key]
	if ok {
		f.subscribers++
		g.mu.Unlock()
		observability.CoalescedSubscribers.Inc()
		return &Subscription{g: g, key: key, f: f}, false
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	f = &flight{wake: make(chan struct{}), subscribers: 1, cancel: cancel}
	g.flights[key] = f
	g.mu.Unlock()

	go g.run(ctx, key, f, produce)
	return &Subscription{g: g, key: key, f: f}, true
}

// InFlight reports the number of running flights.
func (g *Group) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.flights)
}

func (g *Group) run(ctx context.Context, key string, f *flight, produce Producer) {
	err := produce(ctx, f.publish)

	// Forget the flight before waking subscribers so that new callers either
	// see the producer's side effects (cache) or start a fresh flight.
	g.mu.Lock()
	if g.flights[key] == f {
		delete(g.flights, key)
	}
	g.mu.Unlock()

	f.cancel()
	if err == nil {
		err = io.EOF
	}
	f.finish(err)
}

func (f *flight) publish(chunk string) {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return
	}
	f.chunks = append(f.chunks, chunk)
	close(f.wake)
	f.wake = make(chan struct{})
	f.mu.Unlock()
}

func (f *flight) finish(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return
	}
	f.done = true
	f.err = err
	close(f.wake)
}

// Subscription reads one subscriber's view of a flight.
type Subscription struct {
	g      *Group
	key    string
	f      *flight
	next   int
	closed bool
}

// ErrClosed is returned by Next after Close.
var ErrClosed = errors.New("stream: subscription closed")

// Next blocks for the next chunk. It returns io.EOF after the last chunk of
// a successful flight, the producer's error for a failed one, or ctx's error
// when ctx ends first.
func (s *Subscription) Next(ctx context.Context) (string, error) {
	if s.closed {
		return "", ErrClosed
	}
	for {
		s.f.mu.Lock()
		if s.next < len(s.f.chunks) {
			c := s.f.chunks[s.next]
			s.next++
			s.f.mu.Unlock()
			return c, nil
		}
		if s.f.done {
			err := s.f.err
			s.f.mu.Unlock()
			return "", err
		}
		wake := s.f.wake
		s.f.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// Close leaves the flight. The last subscriber to leave an unfinished flight
// cancels its producer.
func (s *Subscription) Close() {
	if s.closed {
		return
	}
	s.closed = true

	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	s.f.subscribers--
	if s.f.subscribers > 0 {
		return
	}
	s.f.mu.Lock()
	done := s.f.done
	s.f.mu.Unlock()
	if done {
		return
	}
	if s.g.flights[s.key] == s.f {
		delete(s.g.flights, s.key)
	}
	s.f.cancel()
}
