package service

import (
	"crypto/rand"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/franzbiely/flash-sale-system/internal/config"
	"github.com/franzbiely/flash-sale-system/internal/constants"
	"github.com/franzbiely/flash-sale-system/internal/logger"
	"github.com/franzbiely/flash-sale-system/internal/models"
	"github.com/franzbiely/flash-sale-system/internal/queue"
	"github.com/franzbiely/flash-sale-system/internal/repository"
)

// timeNow 便于测试替换时钟
var timeNow = time.Now

const (
	defaultCodeLength    = 6
	defaultCodeExpire    = 10 * time.Minute
	defaultSendInterval  = 60 * time.Second
	defaultStatusRecords = 10
)

// PurchaseEnqueuer 抢购交付任务入队契约
type PurchaseEnqueuer interface {
	EnqueuePurchaseFulfill(payload queue.PurchaseFulfillPayload) error
}

// PurchaseService 抢购核心服务：申请、核销预占、状态查询
type PurchaseService struct {
	products  repository.ProductRepository
	sales     repository.FlashSaleRepository
	customers repository.CustomerRepository
	codes     repository.EmailVerifyCodeRepository
	purchases repository.PurchaseRepository
	enqueuer  PurchaseEnqueuer
	mailer    PurchaseMailer
	cfg       *config.Config
}

// NewPurchaseService 创建抢购服务
func NewPurchaseService(
	products repository.ProductRepository,
	sales repository.FlashSaleRepository,
	customers repository.CustomerRepository,
	codes repository.EmailVerifyCodeRepository,
	purchases repository.PurchaseRepository,
	enqueuer PurchaseEnqueuer,
	mailer PurchaseMailer,
	cfg *config.Config,
) *PurchaseService {
	return &PurchaseService{
		products:  products,
		sales:     sales,
		customers: customers,
		codes:     codes,
		purchases: purchases,
		enqueuer:  enqueuer,
		mailer:    mailer,
		cfg:       cfg,
	}
}

// RequestPurchaseResult 抢购申请结果
type RequestPurchaseResult struct {
	Email       string    `json:"email"`
	FlashSaleID uint      `json:"flash_sale_id"`
	SentAt      time.Time `json:"sent_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// VerifyPurchaseResult 核销预占结果
type VerifyPurchaseResult struct {
	PurchaseID     uint   `json:"purchase_id"`
	FlashSaleID    uint   `json:"flash_sale_id"`
	ProductID      uint   `json:"product_id"`
	Status         string `json:"status"`
	RemainingStock int    `json:"remaining_stock"`
}

// PurchaseStatusItem 状态查询单条记录
type PurchaseStatusItem struct {
	PurchaseID    uint      `json:"purchase_id"`
	FlashSaleID   uint      `json:"flash_sale_id"`
	ProductID     uint      `json:"product_id"`
	Status        string    `json:"status"`
	FailureDetail string    `json:"failure_detail,omitempty"`
	FinalStock    *int      `json:"final_stock,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PurchaseStatusResult 状态查询结果
type PurchaseStatusResult struct {
	Email         string               `json:"email"`
	Records       []PurchaseStatusItem `json:"records"`
	CodePending   bool                 `json:"code_pending"`
	CodeExpiresAt *time.Time           `json:"code_expires_at,omitempty"`
}

// RequestPurchase 抢购申请：校验场次、签发验证码并投递邮件
//
// 验证码的存在与送达对调用方是一个原子事实：邮件发送失败时
// 必须删除刚写入的验证码，避免留下一个从未送达的有效凭证。
func (s *PurchaseService) RequestPurchase(email string, productID uint, locale string) (*RequestPurchaseResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidEmail
	}
	if productID == 0 {
		return nil, ErrInvalidProductID
	}

	product, err := s.products.GetByID(productID)
	if err != nil {
		return nil, err
	}
	if product == nil || !product.IsActive {
		return nil, ErrInvalidProductID
	}

	now := timeNow()
	sale, err := s.sales.GetActiveByProductID(productID, now)
	if err != nil {
		return nil, err
	}
	if sale == nil {
		return nil, ErrNoActiveSale
	}

	existing, err := s.purchases.GetByEmailAndSale(email, sale.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateRequest
	}

	latest, err := s.codes.GetLatest(email)
	if err != nil {
		return nil, err
	}
	if latest != nil && now.Sub(latest.SentAt) < s.sendInterval() {
		return nil, ErrVerifyCodeTooFrequent
	}

	if err := s.customers.Upsert(email, now); err != nil {
		return nil, err
	}

	code, err := randomNumericCode(s.codeLength())
	if err != nil {
		return nil, err
	}
	record := &models.EmailVerifyCode{
		Email:     email,
		Code:      code,
		ExpiresAt: now.Add(s.codeExpire()),
		SentAt:    now,
	}
	if err := s.codes.Replace(record); err != nil {
		return nil, err
	}

	if err := s.mailer.SendVerifyCode(email, code, locale); err != nil {
		logger.Warnw("验证码邮件发送失败，回滚验证码",
			"email", email, "flash_sale_id", sale.ID, "error", err)
		if delErr := s.codes.Delete(record.ID); delErr != nil {
			logger.Errorw("回滚验证码失败", "code_id", record.ID, "error", delErr)
		}
		return nil, ErrDeliveryFailed
	}

	logger.Infow("抢购验证码已签发",
		"email", email, "product_id", productID, "flash_sale_id", sale.ID)
	return &RequestPurchaseResult{
		Email:       email,
		FlashSaleID: sale.ID,
		SentAt:      record.SentAt,
		ExpiresAt:   record.ExpiresAt,
	}, nil
}

// VerifyPurchase 核销验证码并原子预占场次库存
//
// 竞态安全依赖两个存储层原语：条件扣减（stock > 0 且窗口内）与
// (email, flash_sale_id) 唯一约束。扣减发生后的任何失败路径都必须
// 确定性回补库存，不允许库存被扣而没有对应的抢购记录。
func (s *PurchaseService) VerifyPurchase(email string, productID uint, code string) (*VerifyPurchaseResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidEmail
	}
	if productID == 0 {
		return nil, ErrInvalidProductID
	}
	code = strings.TrimSpace(code)
	if !isNumericCode(code, s.codeLength()) {
		return nil, ErrVerifyCodeInvalid
	}

	now := timeNow()
	sale, err := s.sales.GetActiveByProductID(productID, now)
	if err != nil {
		return nil, err
	}
	if sale == nil {
		return nil, ErrSaleNotActive
	}

	stored, err := s.codes.GetLatest(email)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, ErrVerifyCodeInvalid
	}
	if stored.IsExpiredAt(now) {
		// 过期即作废，强制重新申请
		if delErr := s.codes.Delete(stored.ID); delErr != nil {
			logger.Warnw("清理过期验证码失败", "code_id", stored.ID, "error", delErr)
		}
		return nil, ErrVerifyCodeExpired
	}
	if stored.Code != code {
		return nil, ErrVerifyCodeInvalid
	}

	existing, err := s.purchases.GetByEmailAndSale(email, sale.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateRequest
	}

	affected, err := s.sales.DecrementStock(sale.ID, now)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrSoldOut
	}

	record := &models.PurchaseRecord{
		Email:       email,
		FlashSaleID: sale.ID,
		ProductID:   productID,
		Status:      constants.PurchaseStatusReserved,
	}
	if err := s.purchases.Create(record); err != nil {
		s.rollbackSaleStock(sale.ID)
		if err == repository.ErrPurchaseExists {
			return nil, ErrDuplicateRequest
		}
		return nil, err
	}

	if err := s.codes.Delete(stored.ID); err != nil {
		// 验证码清理失败不阻断预占，后台 GC 会兜底
		logger.Warnw("删除已消费验证码失败", "code_id", stored.ID, "error", err)
	}

	if err := s.enqueuer.EnqueuePurchaseFulfill(queue.PurchaseFulfillPayload{
		PurchaseID:  record.ID,
		Email:       email,
		ProductID:   productID,
		FlashSaleID: sale.ID,
		EnqueuedAt:  now,
	}); err != nil {
		logger.Errorw("抢购交付任务入队失败，回滚预占",
			"purchase_id", record.ID, "flash_sale_id", sale.ID, "error", err)
		if delErr := s.purchases.DeleteByID(record.ID); delErr != nil {
			logger.Errorw("回滚抢购记录失败", "purchase_id", record.ID, "error", delErr)
		}
		s.rollbackSaleStock(sale.ID)
		return nil, ErrQueueUnavailable
	}

	// 重读失败时退回本次扣减后的推算值，0 只在真正售罄时出现
	remaining := sale.Stock - 1
	if remaining < 0 {
		remaining = 0
	}
	if fresh, err := s.sales.GetByID(sale.ID); err == nil && fresh != nil {
		remaining = fresh.Stock
	}

	logger.Infow("抢购预占成功",
		"purchase_id", record.ID, "email", email,
		"flash_sale_id", sale.ID, "remaining_stock", remaining)
	return &VerifyPurchaseResult{
		PurchaseID:     record.ID,
		FlashSaleID:    sale.ID,
		ProductID:      productID,
		Status:         record.Status,
		RemainingStock: remaining,
	}, nil
}

// GetStatus 查询用户最近的抢购记录与验证码挂起状态
func (s *PurchaseService) GetStatus(email string) (*PurchaseStatusResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidEmail
	}

	limit := defaultStatusRecords
	if s.cfg != nil && s.cfg.Purchase.StatusLimit > 0 {
		limit = s.cfg.Purchase.StatusLimit
	}
	records, err := s.purchases.ListByEmail(email, limit)
	if err != nil {
		return nil, err
	}

	result := &PurchaseStatusResult{
		Email:   email,
		Records: make([]PurchaseStatusItem, 0, len(records)),
	}
	for _, r := range records {
		result.Records = append(result.Records, PurchaseStatusItem{
			PurchaseID:    r.ID,
			FlashSaleID:   r.FlashSaleID,
			ProductID:     r.ProductID,
			Status:        r.Status,
			FailureDetail: r.FailureDetail,
			FinalStock:    r.FinalStock,
			CreatedAt:     r.CreatedAt,
			UpdatedAt:     r.UpdatedAt,
		})
	}

	now := timeNow()
	if code, err := s.codes.GetLatest(email); err == nil && code != nil && !code.IsExpiredAt(now) {
		result.CodePending = true
		expiresAt := code.ExpiresAt
		result.CodeExpiresAt = &expiresAt
	}
	return result, nil
}

// CleanupExpiredCodes 清理过期验证码，返回删除数量
func (s *PurchaseService) CleanupExpiredCodes() (int64, error) {
	return s.codes.DeleteExpired(timeNow())
}

func (s *PurchaseService) rollbackSaleStock(saleID uint) {
	if _, err := s.sales.IncrementStock(saleID); err != nil {
		logger.Errorw("回补场次库存失败", "flash_sale_id", saleID, "error", err)
	}
}

func (s *PurchaseService) codeLength() int {
	if s.cfg != nil && s.cfg.Email.VerifyCode.Length > 0 {
		return s.cfg.Email.VerifyCode.Length
	}
	return defaultCodeLength
}

func (s *PurchaseService) codeExpire() time.Duration {
	if s.cfg != nil && s.cfg.Email.VerifyCode.ExpireMinutes > 0 {
		return time.Duration(s.cfg.Email.VerifyCode.ExpireMinutes) * time.Minute
	}
	return defaultCodeExpire
}

func (s *PurchaseService) sendInterval() time.Duration {
	if s.cfg != nil && s.cfg.Email.VerifyCode.SendIntervalSeconds > 0 {
		return time.Duration(s.cfg.Email.VerifyCode.SendIntervalSeconds) * time.Second
	}
	return defaultSendInterval
}

// normalizeEmail 规范化邮箱：去空白、转小写并做格式校验
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return "", ErrInvalidEmail
	}
	return addr.Address, nil
}

// randomNumericCode 生成指定长度的数字验证码
func randomNumericCode(length int) (string, error) {
	if length <= 0 {
		length = defaultCodeLength
	}
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

func isNumericCode(code string, length int) bool {
	if length <= 0 {
		length = defaultCodeLength
	}
	if len(code) != length {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
