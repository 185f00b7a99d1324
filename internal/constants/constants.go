package constants

// 抢购记录状态常量
const (
	PurchaseStatusReserved          = "reserved"
	PurchaseStatusConfirmed         = "confirmed"
	PurchaseStatusRejectedSoldOut   = "rejected_sold_out"
	PurchaseStatusRejectedDuplicate = "rejected_duplicate"
	PurchaseStatusRejectedError     = "rejected_error"
)

// 活动场次状态常量（派生状态，不落库）
const (
	SaleStatusActive   = "active"
	SaleStatusUpcoming = "upcoming"
	SaleStatusEnded    = "ended"
)

// 异步任务名称常量
const (
	TaskPurchaseFulfill = "purchase:fulfill"
)

// 队列名称常量
const (
	QueueDefault = "default"
)

// 抢购结果通知类型常量
const (
	PurchaseNotifySuccess = "success"
	PurchaseNotifyFailure = "failure"
)

// 语言常量
const (
	LocaleZH = "zh-CN"
	LocaleEN = "en"
)

// IsPurchaseTerminal 判断抢购记录状态是否为终态
func IsPurchaseTerminal(status string) bool {
	switch status {
	case PurchaseStatusConfirmed,
		PurchaseStatusRejectedSoldOut,
		PurchaseStatusRejectedDuplicate,
		PurchaseStatusRejectedError:
		return true
	default:
		return false
	}
}
