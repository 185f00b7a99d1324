package public

import (
	"errors"

	"github.com/franzbiely/flash-sale-system/internal/http/response"
	"github.com/franzbiely/flash-sale-system/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.msg, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackMsg, err)
}

var purchaseRequestErrorRules = []mappedHandlerError{
	{target: service.ErrInvalidEmail, code: response.CodeBadRequest, msg: "邮箱格式不正确"},
	{target: service.ErrInvalidProductID, code: response.CodeBadRequest, msg: "商品不存在或未上架"},
	{target: service.ErrNoActiveSale, code: response.CodeBadRequest, msg: "该商品当前没有进行中的抢购"},
	{target: service.ErrDuplicateRequest, code: response.CodeConflict, msg: "您已参与过该场抢购"},
	{target: service.ErrVerifyCodeTooFrequent, code: response.CodeTooManyRequests, msg: "验证码发送过于频繁，请稍后再试"},
	{target: service.ErrEmailServiceDisabled, code: response.CodeInternal, msg: "邮件服务未配置"},
	{target: service.ErrEmailServiceNotConfigured, code: response.CodeInternal, msg: "邮件服务未配置"},
	{target: service.ErrDeliveryFailed, code: response.CodeInternal, msg: "验证码发送失败，请重试"},
}

var purchaseVerifyErrorRules = []mappedHandlerError{
	{target: service.ErrInvalidEmail, code: response.CodeBadRequest, msg: "邮箱格式不正确"},
	{target: service.ErrInvalidProductID, code: response.CodeBadRequest, msg: "商品不存在或未上架"},
	{target: service.ErrVerifyCodeInvalid, code: response.CodeBadRequest, msg: "验证码错误"},
	{target: service.ErrVerifyCodeExpired, code: response.CodeGone, msg: "验证码已过期，请重新申请"},
	{target: service.ErrSaleNotActive, code: response.CodeBadRequest, msg: "抢购未开始或已结束"},
	{target: service.ErrSoldOut, code: response.CodeGone, msg: "已售罄"},
	{target: service.ErrDuplicateRequest, code: response.CodeConflict, msg: "您已参与过该场抢购"},
	{target: service.ErrQueueUnavailable, code: response.CodeUnavailable, msg: "系统繁忙，请稍后重试"},
}

func respondPurchaseRequestError(c *gin.Context, err error) {
	respondWithMappedError(c, err, purchaseRequestErrorRules, response.CodeInternal, "抢购申请失败")
}

func respondPurchaseVerifyError(c *gin.Context, err error) {
	respondWithMappedError(c, err, purchaseVerifyErrorRules, response.CodeInternal, "抢购核销失败")
}
