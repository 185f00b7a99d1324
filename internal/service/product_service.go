package service

import (
	"strings"

	"github.com/franzbiely/flash-sale-system/internal/models"
	"github.com/franzbiely/flash-sale-system/internal/repository"
)

// ProductService 商品查询服务
type ProductService struct {
	products repository.ProductRepository
}

// NewProductService 创建商品服务
func NewProductService(products repository.ProductRepository) *ProductService {
	return &ProductService{products: products}
}

// ListActive 获取上架商品
func (s *ProductService) ListActive() ([]models.Product, error) {
	return s.products.ListActive()
}

// GetBySlug 根据 slug 获取上架商品
func (s *ProductService) GetBySlug(slug string) (*models.Product, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrInvalidProductID
	}
	product, err := s.products.GetBySlug(slug)
	if err != nil {
		return nil, err
	}
	if product == nil || !product.IsActive {
		return nil, nil
	}
	return product, nil
}
