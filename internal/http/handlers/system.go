package handlers

import (
	"github.com/gin-gonic/gin"
)

// LanguageInfo describes one supported language for the picker.
type LanguageInfo struct {
	Tag         string `json:"tag" example:"python"`
	Name        string `json:"name" example:"Python"`
	Syntax      string `json:"syntax" example:"python"`
	Placeholder string `json:"placeholder"`
	Framework   string `json:"framework" example:"pytest"`
}

// HealthCheck reports dependency status. It always answers 200; a failing
// dependency only degrades the report.
//
// @Summary      Health
// @Tags         system
// @Produce      json
// @Success      200  {object}  services.HealthReport
// @Router       /health [get]
func (h *Handlers) HealthCheck(c *gin.Context) {
	ok(c, h.Health.Check(c.Request.Context()))
}

// Languages lists the registered language strategies.
//
// @Summary      Supported languages
// @Tags         system
// @Produce      json
// @Success      200  {array}  LanguageInfo
// @Router       /api/languages [get]
func (h *Handlers) Languages(c *gin.Context) {
	all := h.Strategies.All()
	out := make([]LanguageInfo, 0, len(all))
	for _, s := range all {
		out = append(out, LanguageInfo{
			Tag:         s.Tag,
			Name:        s.Name,
			Syntax:      s.Syntax,
			Placeholder: s.Placeholder,
			Framework:   s.Framework,
		})
	}
	ok(c, out)
}
