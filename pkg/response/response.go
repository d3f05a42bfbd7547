package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body 统一响应结构
type Body struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Message: message, Data: data})
}

// Fail 失败响应（业务错误，HTTP状态码仍为200）
func Fail(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: false, Message: message, Data: data})
}

// Error 服务端错误响应
func Error(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "error": message})
}
