package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, s *Subscription) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var sb strings.Builder
	for {
		c, err := s.Next(ctx)
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(c)
	}
}

func TestGroup_CoalescesConcurrentCallers(t *testing.T) {
	g := NewGroup()
	var calls atomic.Int32
	release := make(chan struct{})

	produce := func(ctx context.Context, emit func(string)) error {
		calls.Add(1)
		emit("a")
		<-release
		emit("b")
		emit("c")
		return nil
	}

	const n = 8
	subs := make([]*Subscription, n)
	leaders := 0
	for i := range subs {
		s, leader := g.Join(context.Background(), "fp", produce)
		subs[i] = s
		if leader {
			leaders++
		}
	}
	assert.Equal(t, 1, leaders)
	close(release)

	var wg sync.WaitGroup
	results := make([]string, n)
	for i, s := range subs {
		wg.Add(1)
		go func(i int, s *Subscription) {
			defer wg.Done()
			defer s.Close()
			out, err := drain(t, s)
			assert.ErrorIs(t, err, io.EOF)
			results[i] = out
		}(i, s)
	}
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	for _, r := range results {
		assert.Equal(t, "abc", r)
	}
	assert.Eventually(t, func() bool { return g.InFlight() == 0 }, time.Second, 5*time.Millisecond)
}

func TestGroup_LateSubscriberReplaysFromStart(t *testing.T) {
	g := NewGroup()
	gate := make(chan struct{})
	produce := func(ctx context.Context, emit func(string)) error {
		emit("1")
		emit("2")
		<-gate
		emit("3")
		return nil
	}
	first, _ := g.Join(context.Background(), "k", produce)
	defer first.Close()

	c, err := first.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, "1", c)

	late, leader := g.Join(context.Background(), "k", produce)
	defer late.Close()
	assert.False(t, leader)
	close(gate)

	out, err := drain(t, late)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "123", out)
}

func TestGroup_ProducerErrorReachesAllSubscribers(t *testing.T) {
	g := NewGroup()
	boom := errors.New("upstream down")
	gate := make(chan struct{})
	produce := func(ctx context.Context, emit func(string)) error {
		emit("partial")
		<-gate
		return boom
	}
	a, _ := g.Join(context.Background(), "k", produce)
	b, _ := g.Join(context.Background(), "k", produce)
	defer a.Close()
	defer b.Close()
	close(gate)

	for _, s := range []*Subscription{a, b} {
		out, err := drain(t, s)
		assert.Equal(t, "partial", out)
		assert.ErrorIs(t, err, boom)
	}
}

func TestGroup_LastSubscriberLeavingCancelsProducer(t *testing.T) {
	g := NewGroup()
	cancelled := make(chan struct{})
	produce := func(ctx context.Context, emit func(string)) error {
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}
	a, _ := g.Join(context.Background(), "k", produce)
	b, _ := g.Join(context.Background(), "k", produce)

	a.Close()
	select {
	case <-cancelled:
		t.Fatalf("producer cancelled while a subscriber remains")
	case <-time.After(20 * time.Millisecond):
	}

	b.Close()
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatalf("producer not cancelled after last subscriber left")
	}
	assert.Equal(t, 0, g.InFlight())

	_, err := a.Next(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestGroup_LeaderRequestCancellationDoesNotStopFlight(t *testing.T) {
	g := NewGroup()
	reqCtx, cancelReq := context.WithCancel(context.Background())
	gate := make(chan struct{})
	produce := func(ctx context.Context, emit func(string)) error {
		<-gate
		if ctx.Err() != nil {
			return ctx.Err()
		}
		emit("done")
		return nil
	}
	s, _ := g.Join(reqCtx, "k", produce)
	defer s.Close()
	cancelReq()
	close(gate)

	out, err := drain(t, s)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "done", out)
}

func TestSubscription_NextHonoursContext(t *testing.T) {
	g := NewGroup()
	produce := func(ctx context.Context, emit func(string)) error {
		<-ctx.Done()
		return ctx.Err()
	}
	s, _ := g.Join(context.Background(), "k", produce)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := s.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGroup_NewFlightAfterCompletion(t *testing.T) {
	g := NewGroup()
	var calls atomic.Int32
	produce := func(ctx context.Context, emit func(string)) error {
		calls.Add(1)
		emit("x")
		return nil
	}
	s, _ := g.Join(context.Background(), "k", produce)
	_, _ = drain(t, s)
	s.Close()

	require.Eventually(t, func() bool { return g.InFlight() == 0 }, time.Second, 5*time.Millisecond)
	s2, leader := g.Join(context.Background(), "k", produce)
	defer s2.Close()
	assert.True(t, leader)
	_, _ = drain(t, s2)
	assert.EqualValues(t, 2, calls.Load())
}
