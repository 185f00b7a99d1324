package models

import (
	"time"
)

// EmailVerifyCode 邮箱验证码记录
//
// 每个邮箱至多存在一条有效验证码：创建新验证码时删除旧记录，
// 验证通过后立即删除，过期记录由后台清理任务回收。
type EmailVerifyCode struct {
	ID        uint      `gorm:"primarykey" json:"id"`        // 主键
	Email     string    `gorm:"index;not null" json:"email"` // 邮箱
	Code      string    `gorm:"not null" json:"-"`           // 验证码（不返回给前端）
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`     // 过期时间
	SentAt    time.Time `gorm:"index" json:"sent_at"`        // 发送时间
	CreatedAt time.Time `gorm:"index" json:"created_at"`     // 创建时间
}

// TableName 指定表名
func (EmailVerifyCode) TableName() string {
	return "email_verify_codes"
}

// IsExpiredAt 判断验证码在给定时刻是否过期（到期时刻本身视为过期）
func (c *EmailVerifyCode) IsExpiredAt(now time.Time) bool {
	if c == nil {
		return true
	}
	return !now.Before(c.ExpiresAt)
}
