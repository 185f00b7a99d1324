package service

import (
	"context"
	"time"

	"github.com/franzbiely/flash-sale-system/internal/cache"
	"github.com/franzbiely/flash-sale-system/internal/logger"
	"github.com/franzbiely/flash-sale-system/internal/models"
	"github.com/franzbiely/flash-sale-system/internal/repository"
)

const (
	activeSalesCacheKey = "sales:active"
	activeSalesCacheTTL = 3 * time.Second
)

// FlashSaleService 抢购场次查询服务
type FlashSaleService struct {
	sales repository.FlashSaleRepository
}

// NewFlashSaleService 创建场次服务
func NewFlashSaleService(sales repository.FlashSaleRepository) *FlashSaleService {
	return &FlashSaleService{sales: sales}
}

// FlashSaleView 场次视图
type FlashSaleView struct {
	ID           uint      `json:"id"`
	ProductID    uint      `json:"product_id"`
	ProductSlug  string    `json:"product_slug"`
	ProductTitle string    `json:"product_title"`
	Price        string    `json:"price"`
	Title        string    `json:"title"`
	Stock        int       `json:"stock"`
	StartAt      time.Time `json:"start_at"`
	EndAt        time.Time `json:"end_at"`
	Status       string    `json:"status"`
}

// ListActive 获取进行中的场次；短 TTL 缓存吸收抢购开始时的读放大
func (s *FlashSaleService) ListActive(ctx context.Context) ([]FlashSaleView, error) {
	var cached []FlashSaleView
	if hit, err := cache.GetJSON(ctx, activeSalesCacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	now := timeNow()
	sales, err := s.sales.ListActive(now)
	if err != nil {
		return nil, err
	}
	views := make([]FlashSaleView, 0, len(sales))
	for _, sale := range sales {
		views = append(views, buildFlashSaleView(sale, now))
	}

	if err := cache.SetJSON(ctx, activeSalesCacheKey, views, activeSalesCacheTTL); err != nil {
		logger.Debugw("缓存进行中场次失败", "error", err)
	}
	return views, nil
}

func buildFlashSaleView(sale models.FlashSale, now time.Time) FlashSaleView {
	view := FlashSaleView{
		ID:        sale.ID,
		ProductID: sale.ProductID,
		Title:     sale.Title,
		Stock:     sale.Stock,
		StartAt:   sale.StartAt,
		EndAt:     sale.EndAt,
		Status:    sale.Status(now),
	}
	if sale.Product != nil {
		view.ProductSlug = sale.Product.Slug
		view.ProductTitle = sale.Product.Title
		view.Price = sale.Product.PriceAmount.StringFixed(2)
	}
	return view
}
