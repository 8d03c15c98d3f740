package handlers

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-testgen-gateway/internal/http/middleware"
	"github.com/tbourn/go-testgen-gateway/internal/services"
)

// flexString accepts a JSON string or number and keeps its text.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) >= 2 && b[0] == '"' && b[len(b)-1] == '"' {
		b = b[1 : len(b)-1]
	}
	if bytes.Equal(b, []byte("null")) {
		b = nil
	}
	*f = flexString(b)
	return nil
}

// AdRewardRequest is the body of POST /api/ads/reward.
type AdRewardRequest struct {
	AdNetwork     string     `json:"ad_network" validate:"required,max=64" example:"admob"`
	TransactionID string     `json:"transaction_id" validate:"required,max=256" example:"tx-123"`
	Timestamp     flexString `json:"timestamp" swaggertype:"string" example:"1735689600"`
}

// AdReward credits a rewarded ad view once per transaction.
//
// @Summary      Claim ad reward
// @Tags         tokens
// @Accept       json
// @Produce      json
// @Param        body  body      AdRewardRequest          true  "Ad transaction"
// @Success      200   {object}  services.AdRewardResult
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      429   {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /api/ads/reward [post]
func (h *Handlers) AdReward(c *gin.Context) {
	p, _ := middleware.PrincipalFrom(c)

	var body AdRewardRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := requestValidate.Struct(body); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid "+firstInvalidField(err))
		return
	}

	res, err := h.AdRewards.Claim(c.Request.Context(), p.ID, body.AdNetwork, body.TransactionID, string(body.Timestamp))
	switch {
	case errors.Is(err, services.ErrStaleAdReward):
		fail(c, http.StatusBadRequest, ErrCodeStaleReward, err.Error())
	case errors.Is(err, services.ErrInvalidAdReward):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case err != nil:
		internal(c, err)
	default:
		ok(c, res)
	}
}

// KofiWebhook applies a Ko-fi payment event posted as the form field "data".
// Only a failed verification is refused; every other outcome is a 200 whose
// body says what happened, and failures are logged here.
//
// @Summary      Ko-fi webhook
// @Description  Every request except a failed verification is answered with 200; replays credit nothing.
// @Tags         tokens
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Param        data  formData  string                   true  "Ko-fi JSON payload"
// @Success      200   {object}  services.WebhookOutcome
// @Failure      403   {object}  ErrorResponse
// @Router       /api/kofi/webhook [post]
func (h *Handlers) KofiWebhook(c *gin.Context) {
	log := middleware.LoggerFrom(c)

	ev, err := services.ParseKofiPayload(c.PostForm("data"))
	if err != nil {
		log.Warn().Err(err).Msg("kofi payload rejected")
		ok(c, services.WebhookOutcome{Status: "ignored", Note: "malformed payload"})
		return
	}
	out, err := h.Webhooks.Ingest(c.Request.Context(), ev)
	switch {
	case errors.Is(err, services.ErrWebhookForbidden):
		fail(c, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case err != nil:
		log.Error().Err(err).Str("kofi_transaction_id", ev.KofiTransactionID).Msg("kofi event not applied")
		ok(c, services.WebhookOutcome{Status: "error", Note: "event not applied"})
	default:
		ok(c, out)
	}
}
