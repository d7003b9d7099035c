// Package handler 实现 HTTP API 的 Gin 处理函数。
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/johnpham4/legal-rag-llm/internal/model"
)

func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": data, "message": "success"})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"code": status, "message": message})
}

// failWithError 将 ErrInvalidArgument 映射为 400，其余错误映射为 500。
func failWithError(c *gin.Context, err error, fallback string) {
	if errors.Is(err, model.ErrInvalidArgument) {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	fail(c, http.StatusInternalServerError, fallback)
}
