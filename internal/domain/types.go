package domain

// Principal is the authenticated caller attached to a request.
type Principal struct {
	ID    string
	Email string
}

// GenerationRequest is the orchestrator input.
type GenerationRequest struct {
	SourceCode   string
	LanguageTag  string
	Model        string
	IsRegenerate bool
}

// ExecutionTask is sent from the gateway to the sandbox worker.
type ExecutionTask struct {
	InputCode string `json:"input_code"`
	TestCode  string `json:"test_code"`
	Language  string `json:"language"`
}

// ExecutionResult is the worker's verdict for one ExecutionTask.
type ExecutionResult struct {
	Success bool   `json:"success"`
	Output  string `json:"output"`
	Error   string `json:"error,omitempty"`
}

// HistoryItem is a decrypted history row as returned to its owner.
type HistoryItem struct {
	ID            string `json:"id"`
	InputCode     string `json:"input_code"`
	GeneratedCode string `json:"generated_code"`
	Language      string `json:"language"`
	Model         string `json:"model"`
	CreatedAt     string `json:"created_at"` // RFC 3339
}

// TokenInfo is the caller-visible wallet state.
type TokenInfo struct {
	Balance           int  `json:"balance"`
	DailyBonusClaimed bool `json:"daily_bonus_claimed"`
	WelcomeGranted    bool `json:"welcome_granted"`
}
