package public

import (
	"github.com/franzbiely/flash-sale-system/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetActiveSales 获取进行中的抢购场次
func (h *Handler) GetActiveSales(c *gin.Context) {
	sales, err := h.FlashSaleService.ListActive(c.Request.Context())
	if err != nil {
		respondError(c, response.CodeInternal, "查询场次失败", err)
		return
	}
	response.Success(c, gin.H{"sales": sales})
}

// GetProductBySlug 根据 slug 获取商品
func (h *Handler) GetProductBySlug(c *gin.Context) {
	product, err := h.ProductService.GetBySlug(c.Param("slug"))
	if err != nil {
		respondError(c, response.CodeInternal, "查询商品失败", err)
		return
	}
	if product == nil {
		response.NotFound(c, "商品不存在")
		return
	}
	response.Success(c, product)
}
