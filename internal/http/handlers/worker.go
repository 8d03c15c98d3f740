package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-testgen-gateway/internal/domain"
)

// WorkerHandlers serves the sandbox worker API.
type WorkerHandlers struct {
	Sandbox Executor
	Health  HealthChecker
}

// Execute runs one task in the sandbox.
//
// @Summary      Run task (worker)
// @Tags         worker
// @Accept       json
// @Produce      json
// @Param        body  body      domain.ExecutionTask    true  "Task"
// @Success      200   {object}  domain.ExecutionResult
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Router       /execute [post]
func (w *WorkerHandlers) Execute(c *gin.Context) {
	var task domain.ExecutionTask
	if err := c.ShouldBindJSON(&task); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	ok(c, w.Sandbox.Execute(c.Request.Context(), task))
}

// HealthCheck reports container runtime availability.
//
// @Summary      Worker health
// @Tags         worker
// @Produce      json
// @Success      200  {object}  services.HealthReport
// @Router       /health [get]
func (w *WorkerHandlers) HealthCheck(c *gin.Context) {
	ok(c, w.Health.Check(c.Request.Context()))
}
