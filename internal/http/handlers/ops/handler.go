package ops

import (
	"crypto/subtle"
	"strings"

	"github.com/franzbiely/flash-sale-system/internal/http/response"
	"github.com/franzbiely/flash-sale-system/internal/provider"

	"github.com/gin-gonic/gin"
)

const opsTokenHeader = "X-Ops-Token"

// Handler 运维接口处理器
type Handler struct {
	*provider.Container
}

// New 创建运维处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}

// TokenGuard 静态令牌校验中间件；未配置令牌时整组接口关闭
func (h *Handler) TokenGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if h.Config != nil {
			token = strings.TrimSpace(h.Config.Security.OpsToken)
		}
		if token == "" {
			response.NotFound(c, "not found")
			c.Abort()
			return
		}
		provided := strings.TrimSpace(c.GetHeader(opsTokenHeader))
		if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			response.Unauthorized(c, "无效的运维令牌")
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetQueueStats 查询交付队列任务计数
func (h *Handler) GetQueueStats(c *gin.Context) {
	if h.QueueClient == nil {
		response.Error(c, response.CodeUnavailable, "队列未启用")
		return
	}
	stats, err := h.QueueClient.QueueStats()
	if err != nil {
		response.Error(c, response.CodeInternal, "查询队列状态失败")
		return
	}
	response.Success(c, stats)
}
