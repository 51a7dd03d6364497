package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/storynest/storynest-backend/internal/apierr"
	"github.com/storynest/storynest-backend/internal/logger"
	"github.com/storynest/storynest-backend/internal/services"
)

type DayHandler struct {
	log        *logger.Logger
	dayService services.DayService
}

func NewDayHandler(log *logger.Logger, dayService services.DayService) *DayHandler {
	return &DayHandler{
		log:        log.With("handler", "DayHandler"),
		dayService: dayService,
	}
}

// GET /api/plans/:id/day/:index
func (h *DayHandler) GetDay(c *gin.Context) {
	planID, dayIndex, ok := parseDayParams(c)
	if !ok {
		return
	}

	detail, err := h.dayService.GetDayDetail(c.Request.Context(), planID, dayIndex)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, detail)
}

type submitAnswersRequest struct {
	Answers          map[string]any `json:"answers"`
	CompleteDay      bool           `json:"completeDay"`
	TimeSpentSeconds map[string]int `json:"timeSpentSeconds"`
}

// POST /api/plans/:id/day/:index/answers
func (h *DayHandler) SubmitAnswers(c *gin.Context) {
	planID, dayIndex, ok := parseDayParams(c)
	if !ok {
		return
	}

	var req submitAnswersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeValidationFailed, fmt.Errorf("invalid request body"))
		return
	}
	if len(req.Answers) == 0 && !req.CompleteDay {
		RespondError(c, http.StatusBadRequest, apierr.CodeValidationFailed, fmt.Errorf("answers required"))
		return
	}

	result, err := h.dayService.SubmitAnswers(c.Request.Context(), planID, dayIndex, services.SubmitAnswersInput{
		Answers:          req.Answers,
		CompleteDay:      req.CompleteDay,
		TimeSpentSeconds: req.TimeSpentSeconds,
	})
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, result)
}

func parseDayParams(c *gin.Context) (uuid.UUID, int, bool) {
	planID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeValidationFailed, fmt.Errorf("invalid plan id"))
		return uuid.Nil, 0, false
	}
	dayIndex, err := strconv.Atoi(c.Param("index"))
	if err != nil || dayIndex < 1 {
		RespondError(c, http.StatusBadRequest, apierr.CodeValidationFailed, fmt.Errorf("invalid day index"))
		return uuid.Nil, 0, false
	}
	return planID, dayIndex, true
}
