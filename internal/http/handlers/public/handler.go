package public

import (
	"strings"

	"github.com/franzbiely/flash-sale-system/internal/constants"
	"github.com/franzbiely/flash-sale-system/internal/http/response"
	"github.com/franzbiely/flash-sale-system/internal/logger"
	"github.com/franzbiely/flash-sale-system/internal/provider"

	"github.com/gin-gonic/gin"
)

// Handler 前台/公开接口处理器入口
type Handler struct {
	*provider.Container
}

// New 创建前台处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}

// respondError 输出错误响应；携带底层错误时记录日志但不外泄细节
func respondError(c *gin.Context, code int, msg string, err error) {
	appErr := response.WrapError(code, msg, err)
	if err != nil {
		logger.Warnw("public_handler_error",
			"path", c.Request.URL.Path,
			"code", appErr.Code,
			"message", appErr.Message,
			"error", err)
	}
	response.Error(c, appErr.Code, appErr.Message)
}

// resolveLocale 从请求头解析通知语言
func resolveLocale(c *gin.Context) string {
	lang := strings.TrimSpace(c.GetHeader("Accept-Language"))
	if strings.HasPrefix(strings.ToLower(lang), "en") {
		return constants.LocaleEN
	}
	return constants.LocaleZH
}
