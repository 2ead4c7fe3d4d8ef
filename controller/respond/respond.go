package respond

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const startTimeKey = "requestStartTime"

// Response uniform API envelope
type Response struct {
	Code           int         `json:"code"`
	Message        string      `json:"message"`
	Data           interface{} `json:"data,omitempty"`
	ProcessingTime string      `json:"processingTime,omitempty"`
}

// TimingMiddleware stamps each request so responses can report elapsed time
func TimingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(startTimeKey, time.Now())
		c.Next()
	}
}

func elapsed(c *gin.Context) string {
	if v, ok := c.Get(startTimeKey); ok {
		if start, ok := v.(time.Time); ok {
			return time.Since(start).String()
		}
	}
	return ""
}

// Success respond 200 with data
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:           http.StatusOK,
		Message:        "success",
		Data:           data,
		ProcessingTime: elapsed(c),
	})
}

// InvalidParam respond 400
func InvalidParam(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Code:           http.StatusBadRequest,
		Message:        message,
		ProcessingTime: elapsed(c),
	})
}

// NotFound respond 404
func NotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, Response{
		Code:           http.StatusNotFound,
		Message:        message,
		ProcessingTime: elapsed(c),
	})
}

// ServerError respond 500
func ServerError(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, Response{
		Code:           http.StatusInternalServerError,
		Message:        message,
		ProcessingTime: elapsed(c),
	})
}
