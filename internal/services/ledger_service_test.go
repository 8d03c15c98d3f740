package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-testgen-gateway/internal/repo"
)

func TestLedger_TokenInfoBootstrapsAndClaimsOnce(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	info, err := l.TokenInfo(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, info.WelcomeGranted)
	assert.True(t, info.DailyBonusClaimed)
	assert.Equal(t, 120, info.Balance)

	info, err = l.TokenInfo(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, info.WelcomeGranted)
	assert.False(t, info.DailyBonusClaimed)
	assert.Equal(t, 120, info.Balance)
}

func TestLedger_DeductCreatesWalletAndReportsShortfall(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	bal, err := l.Deduct(ctx, "fresh", 10)
	require.NoError(t, err)
	assert.Equal(t, 90, bal)

	_, err = l.Deduct(ctx, "fresh", 1000)
	var short *InsufficientTokensError
	require.True(t, errors.As(err, &short), "got %v", err)
	assert.Equal(t, 90, short.Current)
	assert.Equal(t, 1000, short.Required)
}

func TestLedger_CreditDuplicateIsTyped(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	bal, err := l.Credit(ctx, "u1", 50, "ad_reward", "ad", "ad_x_1")
	require.NoError(t, err)
	assert.Equal(t, 50, bal)

	_, err = l.Credit(ctx, "u1", 50, "ad_reward", "ad", "ad_x_1")
	var dup *DuplicateTransactionError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "ad_x_1", dup.Reference)
	assert.Equal(t, 50, dup.Current)
}

func TestLedger_RefundSurvivesCancelledContext(t *testing.T) {
	l, _ := newTestLedger(t)
	_, err := l.Deduct(context.Background(), "u1", 10)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, l.Refund(ctx, "u1", 10))

	info, err := l.TokenInfo(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 120, info.Balance)
}

func TestLedger_RefundUnknownWallet(t *testing.T) {
	l, _ := newTestLedger(t)
	err := l.Refund(context.Background(), "ghost", 10)
	var le *LedgerError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, repo.CodeWalletNotFound, le.Code)
}
