package response

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/tastegraph/pkg/logger"
)

// 业务错误码
const (
	CodeOK                        = "OK"
	CodeValidation                = "VALIDATION_ERROR"
	CodeUnauthorized              = "UNAUTHORIZED"
	CodeForbidden                 = "FORBIDDEN"
	CodeNotFound                  = "NOT_FOUND"
	CodeTargetNotFound            = "TARGET_NOT_FOUND"
	CodeRequestNotFound           = "REQUEST_NOT_FOUND"
	CodeSelfFollowForbidden       = "SELF_FOLLOW_FORBIDDEN"
	CodeAlreadyFollowingOrPending = "ALREADY_FOLLOWING_OR_PENDING"
	CodeTooManyRequests           = "TOO_MANY_REQUESTS"
	CodeTransient                 = "TRANSIENT_ERROR"
	CodeInternal                  = "INTERNAL_ERROR"
)

// Response 统一响应结构
type Response struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: CodeOK, Message: "success", Data: data})
}

// Fail 以指定状态码和业务码返回
func Fail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, Response{Code: code, Message: message})
}

func BadRequest(c *gin.Context, message string) {
	Fail(c, http.StatusBadRequest, CodeValidation, message)
}

func Unauthorized(c *gin.Context, message string) {
	Fail(c, http.StatusUnauthorized, CodeUnauthorized, message)
}

func Forbidden(c *gin.Context, message string) {
	Fail(c, http.StatusForbidden, CodeForbidden, message)
}

func NotFound(c *gin.Context, code, message string) {
	Fail(c, http.StatusNotFound, code, message)
}

func Conflict(c *gin.Context, code, message string) {
	Fail(c, http.StatusConflict, code, message)
}

func TooManyRequests(c *gin.Context) {
	Fail(c, http.StatusTooManyRequests, CodeTooManyRequests, "too many requests")
}

// ServiceUnavailable 存储/网络瞬时故障，调用方可在重新查询状态后重试
func ServiceUnavailable(c *gin.Context, err error) {
	logger.Warn("transient failure", zap.String("path", c.FullPath()), zap.Error(err))
	capture(c, err)
	Fail(c, http.StatusServiceUnavailable, CodeTransient, "temporarily unavailable, please retry")
}

// InternalError 记录错误并返回通用失败信息
func InternalError(c *gin.Context, err error) {
	logger.Error("internal error", zap.String("path", c.FullPath()), zap.Error(err))
	capture(c, err)
	Fail(c, http.StatusInternalServerError, CodeInternal, "internal server error")
}

func capture(c *gin.Context, err error) {
	if hub := sentrygin.GetHubFromContext(c); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}
