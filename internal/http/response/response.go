package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Fail writes the flat {error, status} body the chat clients expect.
func Fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "status": StatusError})
}

// Success adds status:"success" to payload.
func Success(c *gin.Context, payload gin.H) {
	if payload == nil {
		payload = gin.H{}
	}
	payload["status"] = StatusSuccess
	c.JSON(http.StatusOK, payload)
}
