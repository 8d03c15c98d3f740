package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-testgen-gateway/internal/domain"
)

type fixedCounter struct {
	n     int64
	since time.Time
}

func (f *fixedCounter) CountSince(_ context.Context, _ string, t time.Time) (int64, error) {
	f.since = t
	return f.n, nil
}

func TestStatus_RemainingNeverNegative(t *testing.T) {
	now := time.Date(2025, 5, 8, 0, 0, 0, 0, time.UTC)
	c := &fixedCounter{n: 12}
	svc := &StatusService{Usage: c, WeeklyLimit: 50, Now: func() time.Time { return now }}

	st, err := svc.Status(context.Background(), domain.Principal{ID: "u1", Email: "a@b"})
	require.NoError(t, err)
	assert.Equal(t, UserStatus{Email: "a@b", WeeklyUsage: 12, WeeklyLimit: 50, Remaining: 38}, st)
	assert.True(t, c.since.Equal(now.Add(-7*24*time.Hour)))

	c.n = 80
	st, err = svc.Status(context.Background(), domain.Principal{ID: "u1"})
	require.NoError(t, err)
	assert.Zero(t, st.Remaining)
}

func TestHealth_DegradedWhenAnyProbeFails(t *testing.T) {
	h := &HealthService{Probes: map[string]Probe{
		"redis":    func(context.Context) error { return errors.New("connection refused") },
		"database": func(context.Context) error { return nil },
		"model":    func(context.Context) error { return nil },
	}}
	rep := h.Check(context.Background())
	assert.Equal(t, StatusDegraded, rep.Status)
	assert.Equal(t, StatusDown, rep.Services["redis"].Status)
	assert.Equal(t, StatusUp, rep.Services["database"].Status)
	assert.Len(t, rep.Services, 3)
}

func TestHealth_ProbeTimeoutCountsAsDown(t *testing.T) {
	h := &HealthService{Timeout: 20 * time.Millisecond, Probes: map[string]Probe{
		"database": func(ctx context.Context) error { <-ctx.Done(); return ctx.Err() },
	}}
	rep := h.Check(context.Background())
	assert.Equal(t, StatusDegraded, rep.Status)

	h = &HealthService{Probes: map[string]Probe{"model": func(context.Context) error { return nil }}}
	assert.Equal(t, StatusHealthy, h.Check(context.Background()).Status)
}
