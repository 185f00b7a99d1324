package service

import "errors"

// 业务错误定义（handler 层按 errors.Is 映射为接口响应）
var (
	ErrInvalidEmail          = errors.New("invalid email")
	ErrInvalidProductID      = errors.New("invalid product id")
	ErrNoActiveSale          = errors.New("no active flash sale")
	ErrSaleNotActive         = errors.New("flash sale not active")
	ErrSoldOut               = errors.New("flash sale sold out")
	ErrDuplicateRequest      = errors.New("duplicate purchase request")
	ErrVerifyCodeInvalid     = errors.New("verify code invalid")
	ErrVerifyCodeExpired     = errors.New("verify code expired")
	ErrVerifyCodeTooFrequent = errors.New("verify code sent too frequently")
	ErrDeliveryFailed        = errors.New("verify code delivery failed")
	ErrQueueUnavailable      = errors.New("queue unavailable")

	ErrEmailServiceDisabled      = errors.New("email service disabled")
	ErrEmailServiceNotConfigured = errors.New("email service not configured")
)
