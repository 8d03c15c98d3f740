package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-testgen-gateway/internal/http/middleware"
)

// ListHistory returns the caller's history, newest first.
//
// @Summary      Generation history
// @Description  Rows that cannot be decrypted are skipped.
// @Tags         account
// @Produce      json
// @Param        limit  query     int  false  "Max rows (1-100, default 50)"
// @Success      200    {array}   domain.HistoryItem
// @Failure      401    {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /api/history/ [get]
func (h *Handlers) ListHistory(c *gin.Context) {
	p, _ := middleware.PrincipalFrom(c)

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	items, err := h.History.List(c.Request.Context(), p.ID, limit)
	if err != nil {
		internal(c, err)
		return
	}
	ok(c, items)
}

// UserStatus reports weekly generation usage.
//
// @Summary      Usage status
// @Tags         account
// @Produce      json
// @Success      200  {object}  services.UserStatus
// @Failure      401  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /api/user/status [get]
func (h *Handlers) UserStatus(c *gin.Context) {
	p, _ := middleware.PrincipalFrom(c)
	st, err := h.Status.Status(c.Request.Context(), p)
	if err != nil {
		internal(c, err)
		return
	}
	ok(c, st)
}

// TokenInfo returns the wallet, creating it and granting the daily bonus on
// first access of the day.
//
// @Summary      Token balance
// @Tags         tokens
// @Produce      json
// @Success      200  {object}  domain.TokenInfo
// @Failure      401  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /api/tokens [get]
func (h *Handlers) TokenInfo(c *gin.Context) {
	p, _ := middleware.PrincipalFrom(c)
	info, err := h.Tokens.TokenInfo(c.Request.Context(), p.ID)
	if err != nil {
		internal(c, err)
		return
	}
	ok(c, info)
}
