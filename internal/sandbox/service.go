package sandbox

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-testgen-gateway/internal/domain"
	"github.com/tbourn/go-testgen-gateway/internal/observability"
)

// Executor runs a task that already passed the static gate.
type Executor interface {
	Run(ctx context.Context, task domain.ExecutionTask) domain.ExecutionResult
}

// Service applies the static gate and then the executor.
type Service struct {
	Executor Executor
}

// Execute checks and runs task.
func (s *Service) Execute(ctx context.Context, task domain.ExecutionTask) domain.ExecutionResult {
	err := Inspect(ctx, task.InputCode+"\n"+task.TestCode)
	var sv *SecurityViolationError
	switch {
	case errors.As(err, &sv):
		observability.SandboxRuns.WithLabelValues("rejected").Inc()
		zerolog.Ctx(ctx).Warn().Strs("violations", sv.Violations).Msg("sandbox gate rejected code")
		return domain.ExecutionResult{Error: sv.Error()}
	case err != nil:
		zerolog.Ctx(ctx).Error().Err(err).Msg("sandbox gate parse failed")
		return domain.ExecutionResult{Error: "could not inspect code"}
	}
	return s.Executor.Run(ctx, task)
}
