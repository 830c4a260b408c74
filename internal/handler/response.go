package handler

import (
	"errors"
	"net/http"

	"github.com/blues/dcs/internal/logic"
	"github.com/gin-gonic/gin"
)

// Response 通用响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Data:    nil,
	})
}

// FailWith 按业务错误类型映射HTTP状态码
func FailWith(c *gin.Context, err error) {
	switch {
	case errors.Is(err, logic.ErrContractNotFound),
		errors.Is(err, logic.ErrMilestoneNotFound),
		errors.Is(err, logic.ErrPoolNotFound),
		errors.Is(err, logic.ErrRepositoryNotFound),
		errors.Is(err, logic.ErrCommitNotFound),
		errors.Is(err, logic.ErrVestingNotFound):
		ErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, logic.ErrContractAlreadySigned),
		errors.Is(err, logic.ErrMilestoneAlreadyCompleted),
		errors.Is(err, logic.ErrCommitExists):
		ErrorResponse(c, http.StatusConflict, err.Error())
	case errors.Is(err, logic.ErrInsufficientPoolFunds),
		errors.Is(err, logic.ErrPoolNotActive),
		errors.Is(err, logic.ErrInvalidStatusTransition):
		ErrorResponse(c, http.StatusUnprocessableEntity, err.Error())
	default:
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
	}
}
