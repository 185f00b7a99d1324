package repository

import (
	"errors"
	"time"

	"github.com/franzbiely/flash-sale-system/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CustomerRepository 客户数据访问接口
type CustomerRepository interface {
	Upsert(email string, requestAt time.Time) error
	GetByEmail(email string) (*models.Customer, error)
}

// GormCustomerRepository GORM 实现
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewCustomerRepository 创建客户仓库
func NewCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// Upsert 创建或刷新客户记录
func (r *GormCustomerRepository) Upsert(email string, requestAt time.Time) error {
	customer := models.Customer{
		Email:         email,
		LastRequestAt: requestAt,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"last_request_at": requestAt}),
	}).Create(&customer).Error
}

// GetByEmail 根据邮箱获取客户
func (r *GormCustomerRepository) GetByEmail(email string) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.Where("email = ?", email).First(&customer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &customer, nil
}
