package services

import (
	"context"
	"time"

	"github.com/tbourn/go-testgen-gateway/internal/domain"
)

// UsageCounter counts a user's generations since a point in time.
type UsageCounter interface {
	CountSince(ctx context.Context, userID string, t time.Time) (int64, error)
}

// UserStatus is the JSON body for GET /api/user/status.
type UserStatus struct {
	Email       string `json:"email"`
	WeeklyUsage int    `json:"weekly_usage"`
	WeeklyLimit int    `json:"weekly_limit"`
	Remaining   int    `json:"remaining"`
}

// StatusService reports rolling seven-day usage.
type StatusService struct {
	Usage       UsageCounter
	WeeklyLimit int
	Now         func() time.Time
}

// Status computes usage over the last seven days.
func (s *StatusService) Status(ctx context.Context, p domain.Principal) (UserStatus, error) {
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now()
	}
	n, err := s.Usage.CountSince(ctx, p.ID, now.Add(-7*24*time.Hour))
	if err != nil {
		return UserStatus{}, err
	}
	used := int(n)
	return UserStatus{
		Email:       p.Email,
		WeeklyUsage: used,
		WeeklyLimit: s.WeeklyLimit,
		Remaining:   max(0, s.WeeklyLimit-used),
	}, nil
}
