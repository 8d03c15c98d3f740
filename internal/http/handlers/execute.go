package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-testgen-gateway/internal/domain"
)

// ExecuteRequest is the body of POST /api/execute.
type ExecuteRequest struct {
	InputCode string `json:"input_code" validate:"required"`
	TestCode  string `json:"test_code" validate:"required"`
	Language  string `json:"language" validate:"required,langtag" example:"python"`
}

// Execute runs generated tests in the sandbox.
//
// @Summary      Execute tests
// @Description  Runs test_code against input_code in the sandbox worker. Failures, including rejected code, are reported in the result.
// @Tags         execution
// @Accept       json
// @Produce      json
// @Param        body  body      ExecuteRequest          true  "Code and tests"
// @Success      200   {object}  domain.ExecutionResult
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      429   {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /api/execute [post]
func (h *Handlers) Execute(c *gin.Context) {
	var body ExecuteRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := requestValidate.Struct(body); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid "+firstInvalidField(err))
		return
	}
	ok(c, h.Executor.Execute(c.Request.Context(), domain.ExecutionTask{
		InputCode: body.InputCode,
		TestCode:  body.TestCode,
		Language:  body.Language,
	}))
}
