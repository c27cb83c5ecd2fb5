// Package response writes the JSON envelope every endpoint shares:
// {"success":true,"data":...} or {"success":false,"error":{"code","message"}}.
// Error codes are SCREAMING_SNAKE identifiers such as CONFIGURATION_INVALID,
// SESSION_NOT_ACTIVE or STORAGE_BACKEND_ERROR; clients branch on the code,
// the message is for humans.
package response

import "github.com/gin-gonic/gin"

func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
	})
}

func Error(c *gin.Context, statusCode int, code string, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// ErrorWithDetails attaches structured detail (field maps, backend output)
// to the error envelope.
func ErrorWithDetails(c *gin.Context, statusCode int, code string, message string, details any) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
