package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/franzbiely/flash-sale-system/internal/constants"
	"github.com/franzbiely/flash-sale-system/internal/logger"
	"github.com/franzbiely/flash-sale-system/internal/models"
	"github.com/franzbiely/flash-sale-system/internal/provider"
	"github.com/franzbiely/flash-sale-system/internal/queue"
	"github.com/franzbiely/flash-sale-system/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskPurchaseFulfill, c.handlePurchaseFulfill)
}

// handlePurchaseFulfill 抢购交付：权威库存检查并将抢购记录推进到终态
//
// 队列为至少一次投递，处理必须幂等：记录已进入终态时整个任务是空操作，
// 所有状态推进都是 status = 'reserved' 守卫下的条件更新。
func (c *Consumer) handlePurchaseFulfill(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_purchase_fulfill_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PurchaseFulfillPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_purchase_fulfill_unmarshal_failed", "error", err)
		return err
	}
	if payload.PurchaseID == 0 {
		logger.Debugw("worker_purchase_fulfill_skip_invalid_payload", "purchase_id", payload.PurchaseID)
		return nil
	}

	record, err := c.PurchaseRepo.GetByID(payload.PurchaseID)
	if err != nil {
		return c.retryOrFail(ctx, payload.PurchaseID, err)
	}
	if record == nil {
		logger.Debugw("worker_purchase_fulfill_skip_record_not_found", "purchase_id", payload.PurchaseID)
		return nil
	}
	if constants.IsPurchaseTerminal(record.Status) {
		logger.Debugw("worker_purchase_fulfill_skip_terminal",
			"purchase_id", record.ID, "status", record.Status)
		return nil
	}

	// 跨场次同商品去重：预占扣的是场次配额，此处不回补商品库存
	duplicated, err := c.PurchaseRepo.HasVerifiedForProduct(record.Email, record.ProductID, record.FlashSaleID)
	if err != nil {
		return c.retryOrFail(ctx, record.ID, err)
	}
	if duplicated {
		c.rejectPurchase(record, constants.PurchaseStatusRejectedDuplicate,
			"already purchased this product in another sale", nil)
		return nil
	}

	// 权威库存检查：商品实际库存的条件扣减
	affected, err := c.ProductRepo.DecrementTotalStock(record.ProductID)
	if err != nil {
		return c.retryOrFail(ctx, record.ID, err)
	}
	if affected == 0 {
		zero := 0
		c.rejectPurchase(record, constants.PurchaseStatusRejectedSoldOut,
			"product total stock exhausted", &zero)
		return nil
	}

	finalStock := 0
	if product, err := c.ProductRepo.GetByID(record.ProductID); err == nil && product != nil {
		finalStock = product.TotalStock
	}

	confirmed, err := c.PurchaseRepo.MarkConfirmed(record.ID, finalStock)
	if err != nil {
		// 商品库存已扣但确认失败，回补后交给队列重试
		c.compensateProductStock(record.ProductID)
		return c.retryOrFail(ctx, record.ID, err)
	}
	if confirmed == 0 {
		// 重复投递在扣减后输掉条件更新：回补本次多扣的一件
		logger.Debugw("worker_purchase_fulfill_confirm_lost_race", "purchase_id", record.ID)
		c.compensateProductStock(record.ProductID)
		return nil
	}

	logger.Infow("worker_purchase_fulfill_confirmed",
		"purchase_id", record.ID, "email", record.Email,
		"product_id", record.ProductID, "final_stock", finalStock)
	c.notifyResult(record, constants.PurchaseNotifySuccess, "")
	return nil
}

// retryOrFail 非预期错误的重试策略：最后一次尝试耗尽前交还队列退避重试，
// 最后一次则将记录置为 rejected_error 终态，保证结果对用户最终可见。
func (c *Consumer) retryOrFail(ctx context.Context, purchaseID uint, cause error) error {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	if retried < maxRetry {
		logger.Warnw("worker_purchase_fulfill_retry",
			"purchase_id", purchaseID, "retried", retried, "max_retry", maxRetry, "error", cause)
		return cause
	}

	logger.Errorw("worker_purchase_fulfill_final_failure",
		"purchase_id", purchaseID, "retried", retried, "error", cause)
	record, err := c.PurchaseRepo.GetByID(purchaseID)
	if err != nil || record == nil {
		return cause
	}
	c.rejectPurchase(record, constants.PurchaseStatusRejectedError,
		fmt.Sprintf("processing failed after %d attempts: %v", retried+1, cause), nil)
	return cause
}

// rejectPurchase 条件推进到拒绝终态；赢得转移的一方负责发失败通知
func (c *Consumer) rejectPurchase(record *models.PurchaseRecord, status, detail string, finalStock *int) {
	affected, err := c.PurchaseRepo.MarkRejected(record.ID, status, detail, finalStock)
	if err != nil {
		logger.Errorw("worker_purchase_fulfill_reject_failed",
			"purchase_id", record.ID, "status", status, "error", err)
		return
	}
	if affected == 0 {
		logger.Debugw("worker_purchase_fulfill_reject_noop",
			"purchase_id", record.ID, "status", status)
		return
	}
	logger.Infow("worker_purchase_fulfill_rejected",
		"purchase_id", record.ID, "email", record.Email, "status", status, "detail", detail)
	c.notifyResult(record, constants.PurchaseNotifyFailure, detail)
}

func (c *Consumer) compensateProductStock(productID uint) {
	if _, err := c.ProductRepo.IncrementTotalStock(productID); err != nil {
		logger.Errorw("worker_purchase_fulfill_compensate_failed",
			"product_id", productID, "error", err)
	}
}

// notifyResult 尽力而为的结果通知，发送失败只记日志不重试
func (c *Consumer) notifyResult(record *models.PurchaseRecord, kind, detail string) {
	if c.Mailer == nil {
		logger.Debugw("worker_purchase_fulfill_skip_mailer_nil", "purchase_id", record.ID)
		return
	}
	input := service.PurchaseResultEmailInput{
		Kind:   kind,
		Detail: detail,
	}
	if product, err := c.ProductRepo.GetByID(record.ProductID); err == nil && product != nil {
		input.ProductTitle = product.Title
	}
	if sale, err := c.FlashSaleRepo.GetByID(record.FlashSaleID); err == nil && sale != nil {
		input.SaleTitle = sale.Title
	}
	if err := c.Mailer.SendPurchaseResult(record.Email, input, constants.LocaleZH); err != nil {
		logger.Warnw("worker_purchase_fulfill_notify_failed",
			"purchase_id", record.ID, "email", record.Email, "kind", kind, "error", err)
	}
}
