package repository

import (
	"errors"
	"time"

	"github.com/franzbiely/flash-sale-system/internal/models"

	"gorm.io/gorm"
)

// FlashSaleRepository 抢购场次数据访问接口
type FlashSaleRepository interface {
	Create(sale *models.FlashSale) error
	GetByID(id uint) (*models.FlashSale, error)
	GetActiveByProductID(productID uint, now time.Time) (*models.FlashSale, error)
	ListActive(now time.Time) ([]models.FlashSale, error)
	DecrementStock(id uint, now time.Time) (int64, error)
	IncrementStock(id uint) (int64, error)
}

// GormFlashSaleRepository GORM 实现
type GormFlashSaleRepository struct {
	db *gorm.DB
}

// NewFlashSaleRepository 创建抢购场次仓库
func NewFlashSaleRepository(db *gorm.DB) *GormFlashSaleRepository {
	return &GormFlashSaleRepository{db: db}
}

// Create 创建场次
func (r *GormFlashSaleRepository) Create(sale *models.FlashSale) error {
	return r.db.Create(sale).Error
}

// GetByID 根据ID获取场次
func (r *GormFlashSaleRepository) GetByID(id uint) (*models.FlashSale, error) {
	var sale models.FlashSale
	if err := r.db.First(&sale, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sale, nil
}

// GetActiveByProductID 获取商品当前进行中的场次
func (r *GormFlashSaleRepository) GetActiveByProductID(productID uint, now time.Time) (*models.FlashSale, error) {
	var sale models.FlashSale
	if err := r.db.Where("product_id = ? AND start_at <= ? AND end_at >= ? AND stock > 0", productID, now, now).
		Order("start_at asc").
		First(&sale).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sale, nil
}

// ListActive 获取所有进行中的场次
func (r *GormFlashSaleRepository) ListActive(now time.Time) ([]models.FlashSale, error) {
	var sales []models.FlashSale
	if err := r.db.Preload("Product").
		Where("start_at <= ? AND end_at >= ? AND stock > 0", now, now).
		Order("end_at asc").
		Find(&sales).Error; err != nil {
		return nil, err
	}
	return sales, nil
}

// DecrementStock 条件扣减场次库存
//
// 单条原子更新同时校验库存与时间窗口：受影响行数为 0 表示
// 库存已被并发请求抢完或场次已不在进行中。
func (r *GormFlashSaleRepository) DecrementStock(id uint, now time.Time) (int64, error) {
	if id == 0 {
		return 0, errors.New("invalid flash sale id")
	}
	result := r.db.Model(&models.FlashSale{}).
		Where("id = ? AND stock > 0 AND start_at <= ? AND end_at >= ?", id, now, now).
		UpdateColumn("stock", gorm.Expr("stock - 1"))
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// IncrementStock 回补场次库存（预占失败的补偿路径）
func (r *GormFlashSaleRepository) IncrementStock(id uint) (int64, error) {
	if id == 0 {
		return 0, errors.New("invalid flash sale id")
	}
	result := r.db.Model(&models.FlashSale{}).
		Where("id = ?", id).
		UpdateColumn("stock", gorm.Expr("stock + 1"))
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
