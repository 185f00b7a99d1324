package models

import (
	"time"

	"github.com/franzbiely/flash-sale-system/internal/constants"

	"gorm.io/gorm"
)

// FlashSale 抢购场次表
type FlashSale struct {
	ID        uint           `gorm:"primarykey" json:"id"`              // 主键
	ProductID uint           `gorm:"not null;index" json:"product_id"`  // 商品ID
	Title     string         `gorm:"not null" json:"title"`             // 场次标题
	Stock     int            `gorm:"not null;default:0" json:"stock"`   // 场次库存配额（预占时扣减，独立于商品实际库存）
	StartAt   time.Time      `gorm:"not null;index" json:"start_at"`    // 开始时间
	EndAt     time.Time      `gorm:"not null;index" json:"end_at"`      // 结束时间
	CreatedAt time.Time      `gorm:"index" json:"created_at"`           // 创建时间
	UpdatedAt time.Time      `json:"updated_at"`                        // 更新时间
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`                    // 软删除时间

	// 关联
	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"` // 商品信息
}

// TableName 指定表名
func (FlashSale) TableName() string {
	return "flash_sales"
}

// Status 计算场次在给定时刻的派生状态
func (s *FlashSale) Status(now time.Time) string {
	if s == nil {
		return constants.SaleStatusEnded
	}
	if now.Before(s.StartAt) {
		return constants.SaleStatusUpcoming
	}
	if now.After(s.EndAt) || s.Stock <= 0 {
		return constants.SaleStatusEnded
	}
	return constants.SaleStatusActive
}

// IsActiveAt 判断场次在给定时刻是否可参与
func (s *FlashSale) IsActiveAt(now time.Time) bool {
	return s.Status(now) == constants.SaleStatusActive
}
