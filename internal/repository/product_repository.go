package repository

import (
	"errors"

	"github.com/franzbiely/flash-sale-system/internal/models"

	"gorm.io/gorm"
)

// ProductRepository 商品数据访问接口
type ProductRepository interface {
	Create(product *models.Product) error
	GetByID(id uint) (*models.Product, error)
	GetBySlug(slug string) (*models.Product, error)
	ListActive() ([]models.Product, error)
	DecrementTotalStock(id uint) (int64, error)
	IncrementTotalStock(id uint) (int64, error)
}

// GormProductRepository GORM 实现
type GormProductRepository struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓库
func NewProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// Create 创建商品
func (r *GormProductRepository) Create(product *models.Product) error {
	return r.db.Create(product).Error
}

// GetByID 根据ID获取商品
func (r *GormProductRepository) GetByID(id uint) (*models.Product, error) {
	var product models.Product
	if err := r.db.First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

// GetBySlug 根据 slug 获取商品
func (r *GormProductRepository) GetBySlug(slug string) (*models.Product, error) {
	var product models.Product
	if err := r.db.Where("slug = ?", slug).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

// ListActive 获取上架商品列表
func (r *GormProductRepository) ListActive() ([]models.Product, error) {
	var products []models.Product
	if err := r.db.Where("is_active = ?", true).
		Order("created_at desc").
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// DecrementTotalStock 条件扣减商品实际库存（仅当库存大于 0）
//
// 这是交付阶段的权威库存检查：返回受影响行数为 0 表示库存已耗尽。
func (r *GormProductRepository) DecrementTotalStock(id uint) (int64, error) {
	if id == 0 {
		return 0, errors.New("invalid product id")
	}
	result := r.db.Model(&models.Product{}).
		Where("id = ? AND total_stock > 0", id).
		UpdateColumn("total_stock", gorm.Expr("total_stock - 1"))
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// IncrementTotalStock 回补商品实际库存（扣减后的补偿路径）
func (r *GormProductRepository) IncrementTotalStock(id uint) (int64, error) {
	if id == 0 {
		return 0, errors.New("invalid product id")
	}
	result := r.db.Model(&models.Product{}).
		Where("id = ?", id).
		UpdateColumn("total_stock", gorm.Expr("total_stock + 1"))
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
