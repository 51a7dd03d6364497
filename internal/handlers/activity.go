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

type ActivityHandler struct {
	log        *logger.Logger
	dayService services.DayService
}

func NewActivityHandler(log *logger.Logger, dayService services.DayService) *ActivityHandler {
	return &ActivityHandler{
		log:        log.With("handler", "ActivityHandler"),
		dayService: dayService,
	}
}

// POST /api/activities/regenerate/:planId/:dayIndex/:activityType
func (h *ActivityHandler) Regenerate(c *gin.Context) {
	planID, err := uuid.Parse(c.Param("planId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeValidationFailed, fmt.Errorf("invalid plan id"))
		return
	}
	dayIndex, err := strconv.Atoi(c.Param("dayIndex"))
	if err != nil || dayIndex < 1 {
		RespondError(c, http.StatusBadRequest, apierr.CodeValidationFailed, fmt.Errorf("invalid day index"))
		return
	}
	activityType := c.Param("activityType")

	activity, err := h.dayService.RegenerateActivity(c.Request.Context(), planID, dayIndex, activityType)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"activity": activity})
}
