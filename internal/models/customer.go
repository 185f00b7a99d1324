package models

import (
	"time"

	"gorm.io/gorm"
)

// Customer 抢购客户表
type Customer struct {
	ID            uint           `gorm:"primarykey" json:"id"`              // 主键
	Email         string         `gorm:"uniqueIndex;not null" json:"email"` // 邮箱（小写归一化）
	LastRequestAt time.Time      `gorm:"index" json:"last_request_at"`      // 最近一次抢购申请时间
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`           // 创建时间
	UpdatedAt     time.Time      `json:"updated_at"`                        // 更新时间
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`                    // 软删除时间
}

// TableName 指定表名
func (Customer) TableName() string {
	return "customers"
}
