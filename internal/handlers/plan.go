package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/storynest/storynest-backend/internal/apierr"
	"github.com/storynest/storynest-backend/internal/logger"
	"github.com/storynest/storynest-backend/internal/services"
)

type PlanHandler struct {
	log            *logger.Logger
	planService    services.PlanService
	planGeneration services.PlanGenerationService
}

func NewPlanHandler(log *logger.Logger, planService services.PlanService, planGeneration services.PlanGenerationService) *PlanHandler {
	return &PlanHandler{
		log:            log.With("handler", "PlanHandler"),
		planService:    planService,
		planGeneration: planGeneration,
	}
}

type createPlanRequest struct {
	StudentID string `json:"studentId"`
	Name      string `json:"name"`
	Theme     string `json:"theme"`
	Variant   string `json:"variant"`
}

// POST /api/plans
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	var req createPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeValidationFailed, fmt.Errorf("invalid request body"))
		return
	}
	studentID, err := uuid.Parse(req.StudentID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeValidationFailed, fmt.Errorf("invalid studentId"))
		return
	}

	plan, inProgress, err := h.planGeneration.CreatePlan(c.Request.Context(), studentID, req.Name, req.Theme, req.Variant)
	if err != nil {
		h.log.Error("CreatePlan failed", "student_id", studentID, "error", err)
		RespondAPIError(c, err)
		return
	}
	if inProgress {
		RespondOK(c, gin.H{"status": "generating", "message": "plan generation already in progress"})
		return
	}

	RespondCreated(c, gin.H{"plan": gin.H{"id": plan.ID, "status": plan.Status}})
}

// GET /api/plans/:id
func (h *PlanHandler) GetPlan(c *gin.Context) {
	planID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeValidationFailed, fmt.Errorf("invalid plan id"))
		return
	}

	plan, progress, err := h.planService.GetPlanWithProgress(c.Request.Context(), planID)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"plan": plan, "progress": progress})
}

// GET /api/plans/status/:id
func (h *PlanHandler) GetPlanStatus(c *gin.Context) {
	planID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeValidationFailed, fmt.Errorf("invalid plan id"))
		return
	}

	status, err := h.planService.GetStatus(c.Request.Context(), planID)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, status)
}
