package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope is the flat response shape shared by every MellChat HTTP API:
// a success flag, the payload fields next to it, or an error string.
type Envelope map[string]any

// Success sends a 200 response with the payload fields merged next to
// "success": true.
func Success(c *gin.Context, payload Envelope) {
	body := Envelope{"success": true}
	for k, v := range payload {
		if k == "success" {
			continue
		}
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// Error sends an error response.
func Error(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Envelope{
		"success": false,
		"error":   message,
	})
}

// BadRequest sends a 400 error response.
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// NotFound sends a 404 error response.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

// BadGateway sends a 502 error response, used when an upstream store fails.
func BadGateway(c *gin.Context, message string) {
	Error(c, http.StatusBadGateway, message)
}

// InternalError sends a 500 error response.
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}
