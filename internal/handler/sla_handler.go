package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/case-routing-api/internal/models"
	"github.com/noah-isme/case-routing-api/pkg/response"
)

type slaRunner interface {
	RunDailyUpdate(ctx context.Context, now time.Time) (*models.SLAUpdateResult, error)
}

// SLAHandler exposes manual SLA runs.
type SLAHandler struct {
	runner slaRunner
	now    func() time.Time
}

// NewSLAHandler builds a new handler.
func NewSLAHandler(runner slaRunner) *SLAHandler {
	return &SLAHandler{runner: runner, now: time.Now}
}

// Run godoc
// @Summary Run the daily SLA update now
// @Description Safe to repeat: cases already counted today are skipped.
// @Tags SLA
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /sla/run [post]
func (h *SLAHandler) Run(c *gin.Context) {
	result, err := h.runner.RunDailyUpdate(c.Request.Context(), h.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
