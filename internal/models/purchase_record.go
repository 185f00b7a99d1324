package models

import (
	"time"

	"gorm.io/gorm"
)

// PurchaseRecord 抢购记录表
//
// (email, flash_sale_id) 唯一索引是防止同一用户在同一场次重复下单的
// 最终约束，必须由存储层保证，应用层的存在性检查只是快速失败。
type PurchaseRecord struct {
	ID            uint           `gorm:"primarykey" json:"id"`                                             // 主键
	Email         string         `gorm:"not null;uniqueIndex:idx_purchase_email_sale" json:"email"`        // 邮箱
	ProductID     uint           `gorm:"not null;index" json:"product_id"`                                 // 商品ID
	FlashSaleID   uint           `gorm:"not null;uniqueIndex:idx_purchase_email_sale" json:"flash_sale_id"` // 场次ID
	Status        string         `gorm:"type:varchar(32);not null;index" json:"status"`                    // 状态（reserved/confirmed/rejected_*）
	FailureDetail string         `gorm:"type:varchar(255)" json:"failure_detail,omitempty"`                // 失败详情
	FinalStock    *int           `json:"final_stock,omitempty"`                                            // 终态时的商品库存快照
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`                                          // 创建时间
	UpdatedAt     time.Time      `gorm:"index" json:"updated_at"`                                          // 更新时间
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`                                                   // 软删除时间
}

// TableName 指定表名
func (PurchaseRecord) TableName() string {
	return "purchase_records"
}
