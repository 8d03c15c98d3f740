package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/go-testgen-gateway/internal/domain"
)

// Accepted window for ad reward timestamps.
const (
	adRewardMaxAge  = 10 * time.Minute
	adRewardMaxSkew = time.Minute
)

// AdRewardResult is the JSON body for a reward claim.
type AdRewardResult struct {
	Success       bool `json:"success"`
	AddedTokens   int  `json:"added_tokens"`
	CurrentTokens int  `json:"current_tokens"`
}

// AdRewardService credits rewarded ad views at most once per transaction.
type AdRewardService struct {
	Ledger Crediter
	Tokens int
	Now    func() time.Time
}

// ParseAdTimestamp accepts unix seconds (integer or fractional) or RFC 3339.
func ParseAdTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidAdReward
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		sec := int64(f)
		return time.Unix(sec, int64((f-float64(sec))*1e9)).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, ErrInvalidAdReward
}

// Claim credits the reward for one ad transaction.
func (s *AdRewardService) Claim(ctx context.Context, userID, network, transactionID, timestamp string) (AdRewardResult, error) {
	network = strings.ToLower(strings.TrimSpace(network))
	transactionID = strings.TrimSpace(transactionID)
	if network == "" || transactionID == "" {
		return AdRewardResult{}, ErrInvalidAdReward
	}
	at, err := ParseAdTimestamp(timestamp)
	if err != nil {
		return AdRewardResult{}, err
	}
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now()
	}
	if now.Sub(at) > adRewardMaxAge || at.Sub(now) > adRewardMaxSkew {
		return AdRewardResult{}, ErrStaleAdReward
	}

	ref := "ad_" + network + "_" + transactionID
	balance, err := s.Ledger.Credit(ctx, userID, s.Tokens, domain.KindAdReward, "Rewarded ad ("+network+")", ref)
	var dup *DuplicateTransactionError
	if errors.As(err, &dup) {
		return AdRewardResult{Success: true, AddedTokens: 0, CurrentTokens: dup.Current}, nil
	}
	if err != nil {
		return AdRewardResult{}, err
	}
	return AdRewardResult{Success: true, AddedTokens: s.Tokens, CurrentTokens: balance}, nil
}
