package queue

import (
	"encoding/json"
	"time"

	"github.com/franzbiely/flash-sale-system/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskPurchaseFulfill 抢购交付任务
	TaskPurchaseFulfill = constants.TaskPurchaseFulfill
)

// PurchaseFulfillPayload 抢购交付任务载荷
//
// 队列载荷只携带引用，抢购记录才是持久化的事实来源。
type PurchaseFulfillPayload struct {
	PurchaseID  uint      `json:"purchase_id"`
	Email       string    `json:"email"`
	ProductID   uint      `json:"product_id"`
	FlashSaleID uint      `json:"flash_sale_id"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// NewPurchaseFulfillTask 创建抢购交付任务
func NewPurchaseFulfillTask(payload PurchaseFulfillPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPurchaseFulfill, body), nil
}
