package repository

import (
	"errors"
	"strings"

	"github.com/franzbiely/flash-sale-system/internal/constants"
	"github.com/franzbiely/flash-sale-system/internal/models"

	"gorm.io/gorm"
)

// ErrPurchaseExists (email, flash_sale_id) 唯一约束冲突
var ErrPurchaseExists = errors.New("purchase record already exists")

// PurchaseRepository 抢购记录数据访问接口
type PurchaseRepository interface {
	Create(record *models.PurchaseRecord) error
	GetByID(id uint) (*models.PurchaseRecord, error)
	GetByEmailAndSale(email string, flashSaleID uint) (*models.PurchaseRecord, error)
	ListByEmail(email string, limit int) ([]models.PurchaseRecord, error)
	HasVerifiedForProduct(email string, productID uint, excludeSaleID uint) (bool, error)
	MarkConfirmed(id uint, finalStock int) (int64, error)
	MarkRejected(id uint, status, detail string, finalStock *int) (int64, error)
	DeleteByID(id uint) error
}

// GormPurchaseRepository GORM 实现
type GormPurchaseRepository struct {
	db *gorm.DB
}

// NewPurchaseRepository 创建抢购记录仓库
func NewPurchaseRepository(db *gorm.DB) *GormPurchaseRepository {
	return &GormPurchaseRepository{db: db}
}

// Create 创建抢购记录；唯一约束冲突返回 ErrPurchaseExists
func (r *GormPurchaseRepository) Create(record *models.PurchaseRecord) error {
	if err := r.db.Create(record).Error; err != nil {
		if isDuplicateKeyError(err) {
			return ErrPurchaseExists
		}
		return err
	}
	return nil
}

// GetByID 根据ID获取抢购记录
func (r *GormPurchaseRepository) GetByID(id uint) (*models.PurchaseRecord, error) {
	var record models.PurchaseRecord
	if err := r.db.First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// GetByEmailAndSale 获取用户在某场次的抢购记录
func (r *GormPurchaseRepository) GetByEmailAndSale(email string, flashSaleID uint) (*models.PurchaseRecord, error) {
	var record models.PurchaseRecord
	if err := r.db.Where("email = ? AND flash_sale_id = ?", email, flashSaleID).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// ListByEmail 按时间倒序获取用户最近的抢购记录
func (r *GormPurchaseRepository) ListByEmail(email string, limit int) ([]models.PurchaseRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	var records []models.PurchaseRecord
	if err := r.db.Where("email = ?", email).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// HasVerifiedForProduct 判断用户是否已在其他场次持有同商品的有效抢购记录
//
// reserved 与 confirmed 均视为有效：前者可能正在交付流水线中。
func (r *GormPurchaseRepository) HasVerifiedForProduct(email string, productID uint, excludeSaleID uint) (bool, error) {
	var count int64
	if err := r.db.Model(&models.PurchaseRecord{}).
		Where("email = ? AND product_id = ? AND flash_sale_id != ? AND status IN ?",
			email, productID, excludeSaleID,
			[]string{constants.PurchaseStatusReserved, constants.PurchaseStatusConfirmed}).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkConfirmed 将 reserved 记录置为 confirmed（条件更新，幂等）
func (r *GormPurchaseRepository) MarkConfirmed(id uint, finalStock int) (int64, error) {
	result := r.db.Model(&models.PurchaseRecord{}).
		Where("id = ? AND status = ?", id, constants.PurchaseStatusReserved).
		Updates(map[string]interface{}{
			"status":      constants.PurchaseStatusConfirmed,
			"final_stock": finalStock,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// MarkRejected 将 reserved 记录置为指定拒绝终态（条件更新，幂等）
func (r *GormPurchaseRepository) MarkRejected(id uint, status, detail string, finalStock *int) (int64, error) {
	if !constants.IsPurchaseTerminal(status) || status == constants.PurchaseStatusConfirmed {
		return 0, errors.New("invalid rejected status: " + status)
	}
	updates := map[string]interface{}{
		"status":         status,
		"failure_detail": detail,
	}
	if finalStock != nil {
		updates["final_stock"] = *finalStock
	}
	result := r.db.Model(&models.PurchaseRecord{}).
		Where("id = ? AND status = ?", id, constants.PurchaseStatusReserved).
		Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// DeleteByID 物理删除抢购记录（仅用于预占失败的回滚路径）
func (r *GormPurchaseRepository) DeleteByID(id uint) error {
	return r.db.Unscoped().Delete(&models.PurchaseRecord{}, id).Error
}

// isDuplicateKeyError 识别唯一约束冲突，兼容未启用错误翻译的驱动
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	message := err.Error()
	return strings.Contains(message, "UNIQUE constraint failed") ||
		strings.Contains(message, "duplicate key value")
}
