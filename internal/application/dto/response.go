package dto

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/turtacn/quotagate/pkg/constants"
	"github.com/turtacn/quotagate/pkg/errors"
)

// APIResponse 通用 API 响应结构
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorDTO   `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ErrorDTO 错误信息 DTO
type ErrorDTO struct {
	Code        string                 `json:"code"`
	Description string                 `json:"description"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// SuccessResponse 创建成功响应
func SuccessResponse(data interface{}, requestID string) *APIResponse {
	return &APIResponse{
		Success:   true,
		Data:      data,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}

// ErrorResponse 创建错误响应. Errors outside the GateError taxonomy are reported
// as a generic server error so internal messages never reach the caller.
func ErrorResponse(err error, requestID string) *APIResponse {
	var errorDTO *ErrorDTO

	if gateErr, ok := errors.AsGateError(err); ok {
		errorDTO = &ErrorDTO{
			Code:        string(gateErr.Code()),
			Description: gateErr.Description(),
			Details:     gateErr.Metadata(),
		}
	} else {
		errorDTO = &ErrorDTO{
			Code:        string(constants.ErrCodeServerError),
			Description: "An unexpected error occurred",
		}
	}

	return &APIResponse{
		Success:   false,
		Error:     errorDTO,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	if gateErr, ok := errors.AsGateError(err); ok {
		return gateErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// SendSuccess writes a success envelope.
func SendSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, SuccessResponse(data, c.GetString(string(constants.ContextKeyRequestID))))
}

// SendError writes an error envelope with the status carried by err.
func SendError(c *gin.Context, err error) {
	c.JSON(StatusFor(err), ErrorResponse(err, c.GetString(string(constants.ContextKeyRequestID))))
}

//Personal.AI order the ending
