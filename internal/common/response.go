package common

import "github.com/gin-gonic/gin"

// OK writes the widget's success envelope.
func OK(c *gin.Context, data any) {
	c.JSON(200, gin.H{
		"success": true,
		"data":    data,
	})
}

// Fail writes the widget's failure envelope. The message is the
// user-facing string, never internal error detail.
func Fail(c *gin.Context, httpStatus int, msg string) {
	c.JSON(httpStatus, gin.H{
		"success": false,
		"data":    msg,
	})
}
