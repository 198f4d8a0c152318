package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/case-routing-api/internal/dto"
	"github.com/noah-isme/case-routing-api/internal/service"
	appErrors "github.com/noah-isme/case-routing-api/pkg/errors"
	"github.com/noah-isme/case-routing-api/pkg/response"
)

type caseWorkflow interface {
	Submit(ctx context.Context, caseID string) (*service.SubmitResult, error)
	GetRouting(ctx context.Context, caseID string) (*service.CaseRoutingView, error)
	RunRouting(ctx context.Context, caseID string, req dto.RunRoutingRequest) (*service.RoutingResult, error)
	ChangeStatus(ctx context.Context, caseID string, req dto.ChangeStatusRequest) (*service.StatusChangeResult, error)
	MarkDone(ctx context.Context, caseID string, req dto.MarkDoneRequest) (*service.MarkDoneResult, error)
}

// CaseRoutingHandler exposes the routing engine and case workflow transitions.
type CaseRoutingHandler struct {
	workflow caseWorkflow
}

// NewCaseRoutingHandler builds a new handler.
func NewCaseRoutingHandler(workflow caseWorkflow) *CaseRoutingHandler {
	return &CaseRoutingHandler{workflow: workflow}
}

// Submit godoc
// @Summary Submit a draft case into the workflow
// @Tags Routing
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /cases/{id}/submit [post]
func (h *CaseRoutingHandler) Submit(c *gin.Context) {
	caseID, err := pathParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.workflow.Submit(c.Request.Context(), caseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// GetRouting godoc
// @Summary Show the queues and assignments of a case
// @Tags Routing
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /cases/{id}/routing [get]
func (h *CaseRoutingHandler) GetRouting(c *gin.Context) {
	caseID, err := pathParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := h.workflow.GetRouting(c.Request.Context(), caseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// RunRouting godoc
// @Summary Run routing rules for a case
// @Tags Routing
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body dto.RunRoutingRequest false "Routing options"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /cases/{id}/routing [post]
func (h *CaseRoutingHandler) RunRouting(c *gin.Context) {
	caseID, err := pathParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.RunRoutingRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid routing payload"))
		return
	}
	result, err := h.workflow.RunRouting(c.Request.Context(), caseID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ChangeStatus godoc
// @Summary Change case status and re-route
// @Tags Routing
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body dto.ChangeStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /cases/{id}/status [put]
func (h *CaseRoutingHandler) ChangeStatus(c *gin.Context) {
	caseID, err := pathParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	result, err := h.workflow.ChangeStatus(c.Request.Context(), caseID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// MarkDone godoc
// @Summary Release a caseworker's queues on a case
// @Tags Routing
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body dto.MarkDoneRequest true "Queues the user is done with"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /cases/{id}/queues/done [put]
func (h *CaseRoutingHandler) MarkDone(c *gin.Context) {
	caseID, err := pathParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.MarkDoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid mark done payload"))
		return
	}
	result, err := h.workflow.MarkDone(c.Request.Context(), caseID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
