package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-testgen-gateway/internal/domain"
	"github.com/tbourn/go-testgen-gateway/internal/http/middleware"
	"github.com/tbourn/go-testgen-gateway/internal/services"
)

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	InputCode      string `json:"input_code" example:"def add(a, b): return a + b"`
	Language       string `json:"language" validate:"omitempty,langtag" example:"Python"`
	Model          string `json:"model" example:"gemini-3-flash-preview"`
	TurnstileToken string `json:"turnstile_token"`
	IsRegenerate   bool   `json:"is_regenerate"`
}

// InsufficientTokensResponse is returned with 402 before any streaming starts.
type InsufficientTokensResponse struct {
	Detail         string `json:"detail"`
	Code           string `json:"code" example:"INSUFFICIENT_TOKENS"`
	CurrentBalance int    `json:"current_balance"`
	Required       int    `json:"required"`
	TraceID        string `json:"trace_id,omitempty"`
}

const inBandError = "ERROR: "

// Generate streams generated test code as plain chunks.
//
// @Summary      Generate unit tests
// @Description  Streams test code for input_code. Validation and upstream failures are reported in-band as a chunk starting with "ERROR: ".
// @Tags         generation
// @Accept       json
// @Produce      text/event-stream
// @Param        body  body      GenerateRequest  true  "Source to test"
// @Success      200   {string}  string           "raw chunks until EOF"
// @Failure      401   {object}  ErrorResponse
// @Failure      402   {object}  InsufficientTokensResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      429   {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /api/generate [post]
func (h *Handlers) Generate(c *gin.Context) {
	p, _ := middleware.PrincipalFrom(c)

	var body GenerateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		streamChunks(c, single(inBandError+"invalid request body"))
		return
	}
	if err := requestValidate.Struct(body); err != nil {
		streamChunks(c, single(inBandError+"invalid "+firstInvalidField(err)))
		return
	}

	chunks, err := h.Generator.Generate(c.Request.Context(), p, domain.GenerationRequest{
		SourceCode:   body.InputCode,
		LanguageTag:  body.Language,
		Model:        body.Model,
		IsRegenerate: body.IsRegenerate,
	})
	var short *services.InsufficientTokensError
	switch {
	case errors.As(err, &short):
		c.AbortWithStatusJSON(http.StatusPaymentRequired, InsufficientTokensResponse{
			Detail:         "not enough tokens for this generation",
			Code:           ErrCodeInsufficientTokens,
			CurrentBalance: short.Current,
			Required:       short.Required,
			TraceID:        middleware.TraceIDFrom(c),
		})
		return
	case err != nil:
		internal(c, err)
		return
	}
	streamChunks(c, chunks)
}

func single(chunk string) <-chan string {
	ch := make(chan string, 1)
	ch <- chunk
	close(ch)
	return ch
}

// streamChunks writes chunks in order and flushes after each one. It returns
// when the channel closes or the client goes away.
func streamChunks(c *gin.Context, chunks <-chan string) {
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	done := c.Request.Context().Done()
	for {
		select {
		case chunk, open := <-chunks:
			if !open {
				c.Writer.WriteHeaderNow()
				return
			}
			if _, err := io.WriteString(c.Writer, chunk); err != nil {
				return
			}
			c.Writer.Flush()
		case <-done:
			return
		}
	}
}
