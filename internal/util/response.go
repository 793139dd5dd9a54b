package util

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zzn199216/hum2song-webui/internal/errors"
	"github.com/zzn199216/hum2song-webui/internal/logger"
	"go.uber.org/zap"
)

// ErrorResponse is the JSON body shape for any failed request.
type ErrorResponse struct {
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// RespondWithAPIError maps an *errors.APIError to its HTTP status and logs
// it at a level proportional to severity. 5xx responses carry no detail in
// the body, only in the log.
func RespondWithAPIError(c *gin.Context, apiErr *errors.APIError) {
	if apiErr.Status >= http.StatusInternalServerError {
		logger.Log.Error("request failed",
			zap.String("code", string(apiErr.Code)),
			zap.String("message", apiErr.Message),
			zap.String("stage", apiErr.Stage),
			zap.Int("status", apiErr.Status),
			zap.Error(apiErr.Cause),
		)
	} else {
		logger.Log.Warn("request rejected",
			zap.String("code", string(apiErr.Code)),
			zap.String("message", apiErr.Message),
			zap.Int("status", apiErr.Status),
		)
	}

	message := apiErr.Message
	if apiErr.Status >= http.StatusInternalServerError {
		message = "internal server error"
	}
	c.JSON(apiErr.Status, ErrorResponse{Message: message, TraceID: apiErr.TraceID})
}

// RespondError maps any error to an API error response, wrapping unknown
// errors as an internal error so the body never leaks implementation detail.
func RespondError(c *gin.Context, err error) {
	if apiErr, ok := errors.As(err); ok {
		RespondWithAPIError(c, apiErr)
		return
	}
	RespondWithAPIError(c, errors.Internal("unexpected error", err))
}

// RespondJSON is a thin wrapper kept for symmetry with RespondError.
func RespondJSON(c *gin.Context, status int, body interface{}) {
	c.JSON(status, body)
}
