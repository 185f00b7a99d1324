package public

import (
	"errors"
	"strings"

	"github.com/franzbiely/flash-sale-system/internal/http/response"
	"github.com/franzbiely/flash-sale-system/internal/service"

	"github.com/gin-gonic/gin"
)

// PurchaseRequestRequest 抢购申请请求
type PurchaseRequestRequest struct {
	Email     string `json:"email" binding:"required"`
	ProductID uint   `json:"product_id" binding:"required"`
}

// RequestPurchase 抢购申请：签发验证码
func (h *Handler) RequestPurchase(c *gin.Context) {
	var req PurchaseRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数不正确", err)
		return
	}

	result, err := h.PurchaseService.RequestPurchase(req.Email, req.ProductID, resolveLocale(c))
	if err != nil {
		respondPurchaseRequestError(c, err)
		return
	}
	response.Success(c, result)
}

// PurchaseVerifyRequest 抢购核销请求
type PurchaseVerifyRequest struct {
	Email     string `json:"email" binding:"required"`
	ProductID uint   `json:"product_id" binding:"required"`
	Code      string `json:"code" binding:"required"`
}

// VerifyPurchase 核销验证码并预占库存
func (h *Handler) VerifyPurchase(c *gin.Context) {
	var req PurchaseVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数不正确", err)
		return
	}

	result, err := h.PurchaseService.VerifyPurchase(req.Email, req.ProductID, req.Code)
	if err != nil {
		respondPurchaseVerifyError(c, err)
		return
	}
	response.Success(c, result)
}

// GetPurchaseStatus 查询抢购状态
func (h *Handler) GetPurchaseStatus(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		respondError(c, response.CodeBadRequest, "缺少邮箱参数", nil)
		return
	}

	result, err := h.PurchaseService.GetStatus(email)
	if err != nil {
		if errors.Is(err, service.ErrInvalidEmail) {
			respondError(c, response.CodeBadRequest, "邮箱格式不正确", nil)
			return
		}
		respondError(c, response.CodeInternal, "查询失败", err)
		return
	}
	response.Success(c, result)
}
