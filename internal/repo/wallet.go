package repo

// Procedure names, shared by both wallet implementations and used as metric labels.
const (
	ProcInitializeUserWallet = "initialize_user_wallet"
	ProcClaimDailyBonus      = "claim_daily_bonus"
	ProcDeductTokens         = "deduct_tokens"
	ProcAddTokens            = "add_tokens"
	ProcRefundTokens         = "refund_tokens"
)

// Error codes reported in WalletResult.Error.
const (
	CodeInsufficientTokens   = "INSUFFICIENT_TOKENS"
	CodeDuplicateTransaction = "DUPLICATE_TRANSACTION"
	CodeWalletNotFound       = "WALLET_NOT_FOUND"
)

// WalletResult mirrors the JSON object returned by the wallet procedures.
// A false Success with a non-empty Error is a business outcome, not a
// transport failure; the latter is returned as a Go error.
type WalletResult struct {
	Success        bool   `json:"success"`
	Error          string `json:"error,omitempty"`
	CurrentBalance int    `json:"current_balance"`
	AlreadyClaimed bool   `json:"already_claimed,omitempty"`
	Created        bool   `json:"created,omitempty"`
}

func failed(code string, balance int) WalletResult {
	return WalletResult{Success: false, Error: code, CurrentBalance: balance}
}

func succeeded(balance int) WalletResult {
	return WalletResult{Success: true, CurrentBalance: balance}
}

const (
	descGenerationDebit = "Test generation"
	descDailyBonus      = "Daily login bonus"
	descRefund          = "Generation refund"
)
