package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/invoice-approval/internal/domain/apperr"
)

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidArgument:
		return http.StatusBadRequest
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindExtractionFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

// fail writes a classified error with its user-facing message. Unclassified errors
// are recorded on the context for the access log and hidden from the client.
func fail(c *gin.Context, err error) {
	status := statusFor(apperr.KindOf(err))
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(status, Response{Success: false, Error: "Internal server error"})
		return
	}
	c.JSON(status, Response{Success: false, Error: apperr.Message(err)})
}
