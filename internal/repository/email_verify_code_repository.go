package repository

import (
	"errors"
	"time"

	"github.com/franzbiely/flash-sale-system/internal/models"

	"gorm.io/gorm"
)

// EmailVerifyCodeRepository 邮箱验证码数据访问接口
type EmailVerifyCodeRepository interface {
	Replace(record *models.EmailVerifyCode) error
	GetLatest(email string) (*models.EmailVerifyCode, error)
	Delete(id uint) error
	DeleteExpired(now time.Time) (int64, error)
}

// GormEmailVerifyCodeRepository GORM 实现
type GormEmailVerifyCodeRepository struct {
	db *gorm.DB
}

// NewEmailVerifyCodeRepository 创建邮箱验证码仓库
func NewEmailVerifyCodeRepository(db *gorm.DB) *GormEmailVerifyCodeRepository {
	return &GormEmailVerifyCodeRepository{db: db}
}

// Replace 写入新验证码并作废同邮箱的旧验证码
func (r *GormEmailVerifyCodeRepository) Replace(record *models.EmailVerifyCode) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email = ?", record.Email).
			Delete(&models.EmailVerifyCode{}).Error; err != nil {
			return err
		}
		return tx.Create(record).Error
	})
}

// GetLatest 获取邮箱最新验证码记录
func (r *GormEmailVerifyCodeRepository) GetLatest(email string) (*models.EmailVerifyCode, error) {
	var record models.EmailVerifyCode
	if err := r.db.Where("email = ?", email).
		Order("sent_at desc, id desc").
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// Delete 删除验证码记录
func (r *GormEmailVerifyCodeRepository) Delete(id uint) error {
	return r.db.Delete(&models.EmailVerifyCode{}, id).Error
}

// DeleteExpired 清理过期验证码，返回删除数量
func (r *GormEmailVerifyCodeRepository) DeleteExpired(now time.Time) (int64, error) {
	result := r.db.Where("expires_at <= ?", now).Delete(&models.EmailVerifyCode{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
