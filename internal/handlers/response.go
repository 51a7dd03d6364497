package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/storynest/storynest-backend/internal/apierr"
)

// ErrorEnvelope is the uniform error body: message, stable code, server
// timestamp. Details ride along only outside release mode.
type ErrorEnvelope struct {
	Message   string `json:"message"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
	Details   any    `json:"details,omitempty"`
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Message:   msg,
		Error:     code,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// RespondAPIError maps a service error onto the envelope, using the typed
// status/code when present and 500 INTERNAL otherwise.
func RespondAPIError(c *gin.Context, err error) {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		envelope := ErrorEnvelope{
			Message:   apiErr.Error(),
			Error:     apiErr.Code,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		if gin.Mode() != gin.ReleaseMode {
			envelope.Details = apiErr.Details
		} else if apiErr.Code == apierr.CodeActivitiesIncomplete {
			// Failed activity types are part of the contract, not debug info.
			envelope.Details = apiErr.Details
		}
		c.JSON(apiErr.Status, envelope)
		return
	}
	RespondError(c, http.StatusInternalServerError, apierr.CodeInternal, err)
}
