package service

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/franzbiely/flash-sale-system/internal/config"
	"github.com/franzbiely/flash-sale-system/internal/constants"
	"github.com/franzbiely/flash-sale-system/internal/models"
	"github.com/franzbiely/flash-sale-system/internal/queue"
	"github.com/franzbiely/flash-sale-system/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type sentMail struct {
	To     string
	Code   string
	Kind   string
	Detail string
}

type stubMailer struct {
	mu       sync.Mutex
	sent     []sentMail
	failSend bool
}

func (m *stubMailer) SendVerifyCode(toEmail, code, locale string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSend {
		return errors.New("smtp unavailable")
	}
	m.sent = append(m.sent, sentMail{To: toEmail, Code: code})
	return nil
}

func (m *stubMailer) SendPurchaseResult(toEmail string, input PurchaseResultEmailInput, locale string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSend {
		return errors.New("smtp unavailable")
	}
	m.sent = append(m.sent, sentMail{To: toEmail, Kind: input.Kind, Detail: input.Detail})
	return nil
}

type stubEnqueuer struct {
	mu       sync.Mutex
	payloads []queue.PurchaseFulfillPayload
	fail     bool
}

func (e *stubEnqueuer) EnqueuePurchaseFulfill(payload queue.PurchaseFulfillPayload) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail {
		return errors.New("broker down")
	}
	e.payloads = append(e.payloads, payload)
	return nil
}

func (e *stubEnqueuer) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.payloads)
}

type purchaseServiceDeps struct {
	db       *gorm.DB
	products repository.ProductRepository
	sales    repository.FlashSaleRepository
	codes    repository.EmailVerifyCodeRepository
	records  repository.PurchaseRepository
	mailer   *stubMailer
	enqueuer *stubEnqueuer
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Email.VerifyCode.ExpireMinutes = 10
	cfg.Email.VerifyCode.SendIntervalSeconds = 60
	cfg.Email.VerifyCode.Length = 6
	cfg.Purchase.StatusLimit = 10
	return cfg
}

func setupPurchaseServiceTest(t *testing.T) (*PurchaseService, *purchaseServiceDeps) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&models.Product{},
		&models.FlashSale{},
		&models.Customer{},
		&models.EmailVerifyCode{},
		&models.PurchaseRecord{},
	); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	deps := &purchaseServiceDeps{
		db:       db,
		products: repository.NewProductRepository(db),
		sales:    repository.NewFlashSaleRepository(db),
		codes:    repository.NewEmailVerifyCodeRepository(db),
		records:  repository.NewPurchaseRepository(db),
		mailer:   &stubMailer{},
		enqueuer: &stubEnqueuer{},
	}
	svc := NewPurchaseService(
		deps.products,
		deps.sales,
		repository.NewCustomerRepository(db),
		deps.codes,
		deps.records,
		deps.enqueuer,
		deps.mailer,
		testConfig(),
	)
	return svc, deps
}

func freezeTime(t *testing.T, now time.Time) {
	t.Helper()
	prev := timeNow
	timeNow = func() time.Time { return now }
	t.Cleanup(func() { timeNow = prev })
}

func seedActiveSale(t *testing.T, deps *purchaseServiceDeps, totalStock, saleStock int) (*models.Product, *models.FlashSale) {
	t.Helper()
	product := &models.Product{
		Slug:       "limited-sneaker",
		Title:      "限量球鞋",
		TotalStock: totalStock,
		IsActive:   true,
	}
	if err := deps.products.Create(product); err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	now := timeNow()
	sale := &models.FlashSale{
		ProductID: product.ID,
		Title:     "首发场",
		Stock:     saleStock,
		StartAt:   now.Add(-time.Hour),
		EndAt:     now.Add(time.Hour),
	}
	if err := deps.sales.Create(sale); err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	return product, sale
}

func seedVerifyCode(t *testing.T, deps *purchaseServiceDeps, email, code string, expiresAt time.Time) *models.EmailVerifyCode {
	t.Helper()
	record := &models.EmailVerifyCode{
		Email:     email,
		Code:      code,
		ExpiresAt: expiresAt,
		SentAt:    expiresAt.Add(-10 * time.Minute),
	}
	if err := deps.codes.Replace(record); err != nil {
		t.Fatalf("seed verify code failed: %v", err)
	}
	return record
}

func saleStock(t *testing.T, deps *purchaseServiceDeps, saleID uint) int {
	t.Helper()
	sale, err := deps.sales.GetByID(saleID)
	if err != nil || sale == nil {
		t.Fatalf("reload sale failed: %v", err)
	}
	return sale.Stock
}

func TestRequestThenVerifyRoundTrip(t *testing.T) {
	svc, deps := setupPurchaseServiceTest(t)
	product, sale := seedActiveSale(t, deps, 10, 5)

	ticket, err := svc.RequestPurchase("Buyer@Example.com", product.ID, constants.LocaleZH)
	if err != nil {
		t.Fatalf("request purchase failed: %v", err)
	}
	if ticket.Email != "buyer@example.com" {
		t.Fatalf("email should be normalized, got %s", ticket.Email)
	}
	if ticket.FlashSaleID != sale.ID {
		t.Fatalf("sale id want %d got %d", sale.ID, ticket.FlashSaleID)
	}
	if len(deps.mailer.sent) != 1 {
		t.Fatalf("verify code mail want 1 got %d", len(deps.mailer.sent))
	}
	code := deps.mailer.sent[0].Code
	if len(code) != 6 {
		t.Fatalf("code length want 6 got %q", code)
	}

	result, err := svc.VerifyPurchase("buyer@example.com", product.ID, code)
	if err != nil {
		t.Fatalf("verify purchase failed: %v", err)
	}
	if result.Status != constants.PurchaseStatusReserved {
		t.Fatalf("status want reserved got %s", result.Status)
	}
	if result.RemainingStock != 4 {
		t.Fatalf("remaining stock want 4 got %d", result.RemainingStock)
	}
	if deps.enqueuer.count() != 1 {
		t.Fatalf("enqueued jobs want 1 got %d", deps.enqueuer.count())
	}

	// 验证码已消费，重放同一验证码失败
	if _, err := svc.VerifyPurchase("buyer@example.com", product.ID, code); !errors.Is(err, ErrVerifyCodeInvalid) {
		t.Fatalf("replayed code want ErrVerifyCodeInvalid got %v", err)
	}

	status, err := svc.GetStatus("buyer@example.com")
	if err != nil {
		t.Fatalf("get status failed: %v", err)
	}
	if len(status.Records) != 1 {
		t.Fatalf("status records want 1 got %d", len(status.Records))
	}
	if status.Records[0].FlashSaleID != sale.ID {
		t.Fatalf("status sale id want %d got %d", sale.ID, status.Records[0].FlashSaleID)
	}
	if status.CodePending {
		t.Fatalf("consumed code should not be pending")
	}
}

func TestRequestPurchaseDuplicate(t *testing.T) {
	svc, deps := setupPurchaseServiceTest(t)
	product, sale := seedActiveSale(t, deps, 10, 5)

	if err := deps.records.Create(&models.PurchaseRecord{
		Email:       "buyer@example.com",
		ProductID:   product.ID,
		FlashSaleID: sale.ID,
		Status:      constants.PurchaseStatusReserved,
	}); err != nil {
		t.Fatalf("seed record failed: %v", err)
	}

	if _, err := svc.RequestPurchase("buyer@example.com", product.ID, constants.LocaleZH); !errors.Is(err, ErrDuplicateRequest) {
		t.Fatalf("want ErrDuplicateRequest got %v", err)
	}
}

func TestRequestPurchaseNoActiveSale(t *testing.T) {
	svc, deps := setupPurchaseServiceTest(t)
	product := &models.Product{Slug: "quiet", Title: "无场次商品", TotalStock: 10, IsActive: true}
	if err := deps.products.Create(product); err != nil {
		t.Fatalf("create product failed: %v", err)
	}

	if _, err := svc.RequestPurchase("buyer@example.com", product.ID, constants.LocaleZH); !errors.Is(err, ErrNoActiveSale) {
		t.Fatalf("want ErrNoActiveSale got %v", err)
	}
}

func TestRequestPurchaseDeliveryFailureRollsBackCode(t *testing.T) {
	svc, deps := setupPurchaseServiceTest(t)
	product, _ := seedActiveSale(t, deps, 10, 5)
	deps.mailer.failSend = true

	if _, err := svc.RequestPurchase("buyer@example.com", product.ID, constants.LocaleZH); !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("want ErrDeliveryFailed got %v", err)
	}

	latest, err := deps.codes.GetLatest("buyer@example.com")
	if err != nil {
		t.Fatalf("get latest failed: %v", err)
	}
	if latest != nil {
		t.Fatalf("undelivered code must be rolled back, got %+v", latest)
	}
}

func TestRequestPurchaseResendTooFrequent(t *testing.T) {
	svc, deps := setupPurchaseServiceTest(t)
	product, _ := seedActiveSale(t, deps, 10, 5)

	if _, err := svc.RequestPurchase("buyer@example.com", product.ID, constants.LocaleZH); err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	if _, err := svc.RequestPurchase("buyer@example.com", product.ID, constants.LocaleZH); !errors.Is(err, ErrVerifyCodeTooFrequent) {
		t.Fatalf("want ErrVerifyCodeTooFrequent got %v", err)
	}
}

func TestVerifyPurchaseExpiryBoundary(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	freezeTime(t, now)

	svc, deps := setupPurchaseServiceTest(t)
	product, _ := seedActiveSale(t, deps, 10, 5)
	// 到期时刻本身视为过期
	seedVerifyCode(t, deps, "buyer@example.com", "123456", now)

	if _, err := svc.VerifyPurchase("buyer@example.com", product.ID, "123456"); !errors.Is(err, ErrVerifyCodeExpired) {
		t.Fatalf("code at exact expiry want ErrVerifyCodeExpired got %v", err)
	}

	// 过期检测后验证码被删除，强制重新申请
	latest, err := deps.codes.GetLatest("buyer@example.com")
	if err != nil {
		t.Fatalf("get latest failed: %v", err)
	}
	if latest != nil {
		t.Fatalf("expired code should be deleted, got %+v", latest)
	}
}

func TestVerifyPurchaseWrongCode(t *testing.T) {
	svc, deps := setupPurchaseServiceTest(t)
	product, _ := seedActiveSale(t, deps, 10, 5)
	seedVerifyCode(t, deps, "buyer@example.com", "123456", timeNow().Add(10*time.Minute))

	if _, err := svc.VerifyPurchase("buyer@example.com", product.ID, "654321"); !errors.Is(err, ErrVerifyCodeInvalid) {
		t.Fatalf("wrong code want ErrVerifyCodeInvalid got %v", err)
	}
	if _, err := svc.VerifyPurchase("buyer@example.com", product.ID, "12345"); !errors.Is(err, ErrVerifyCodeInvalid) {
		t.Fatalf("short code want ErrVerifyCodeInvalid got %v", err)
	}
}

func TestVerifyPurchaseSoldOut(t *testing.T) {
	svc, deps := setupPurchaseServiceTest(t)
	product, sale := seedActiveSale(t, deps, 10, 0)
	seedVerifyCode(t, deps, "buyer@example.com", "123456", timeNow().Add(10*time.Minute))

	// 配额为 0 的场次不再是进行中场次
	if _, err := svc.VerifyPurchase("buyer@example.com", product.ID, "123456"); !errors.Is(err, ErrSaleNotActive) {
		t.Fatalf("want ErrSaleNotActive got %v", err)
	}
	if stock := saleStock(t, deps, sale.ID); stock != 0 {
		t.Fatalf("stock want 0 got %d", stock)
	}
}

// staleSaleRepo 返回陈旧的场次快照，模拟查询后库存被并发扣尽
type staleSaleRepo struct {
	repository.FlashSaleRepository
	snapshot *models.FlashSale
}

func (r *staleSaleRepo) GetActiveByProductID(productID uint, now time.Time) (*models.FlashSale, error) {
	return r.snapshot, nil
}

func TestVerifyPurchaseRaceLosesDecrement(t *testing.T) {
	_, deps := setupPurchaseServiceTest(t)
	product, sale := seedActiveSale(t, deps, 10, 0)
	seedVerifyCode(t, deps, "buyer@example.com", "123456", timeNow().Add(10*time.Minute))

	stale := *sale
	stale.Stock = 1
	svc := NewPurchaseService(
		deps.products,
		deps.sales,
		repository.NewCustomerRepository(deps.db),
		deps.codes,
		deps.records,
		deps.enqueuer,
		deps.mailer,
		testConfig(),
	)
	svc.sales = &staleSaleRepo{FlashSaleRepository: deps.sales, snapshot: &stale}

	if _, err := svc.VerifyPurchase("buyer@example.com", product.ID, "123456"); !errors.Is(err, ErrSoldOut) {
		t.Fatalf("want ErrSoldOut got %v", err)
	}
	if deps.enqueuer.count() != 0 {
		t.Fatalf("nothing should be enqueued, got %d", deps.enqueuer.count())
	}
}

// readFailSaleRepo 扣减后的回读失败，结果里的剩余库存不得误报为 0
type readFailSaleRepo struct {
	repository.FlashSaleRepository
}

func (r *readFailSaleRepo) GetByID(id uint) (*models.FlashSale, error) {
	return nil, errors.New("read timeout")
}

func TestVerifyPurchaseRemainingStockOnReadFailure(t *testing.T) {
	svc, deps := setupPurchaseServiceTest(t)
	product, sale := seedActiveSale(t, deps, 10, 5)
	seedVerifyCode(t, deps, "buyer@example.com", "123456", timeNow().Add(10*time.Minute))

	svc.sales = &readFailSaleRepo{FlashSaleRepository: deps.sales}

	result, err := svc.VerifyPurchase("buyer@example.com", product.ID, "123456")
	if err != nil {
		t.Fatalf("verify purchase failed: %v", err)
	}
	if result.RemainingStock != 4 {
		t.Fatalf("remaining stock want fallback 4 got %d", result.RemainingStock)
	}
	if stock := saleStock(t, deps, sale.ID); stock != 4 {
		t.Fatalf("persisted stock want 4 got %d", stock)
	}
}

func TestVerifyPurchaseEnqueueFailureRollsBack(t *testing.T) {
	svc, deps := setupPurchaseServiceTest(t)
	product, sale := seedActiveSale(t, deps, 10, 5)
	seedVerifyCode(t, deps, "buyer@example.com", "123456", timeNow().Add(10*time.Minute))
	deps.enqueuer.fail = true

	if _, err := svc.VerifyPurchase("buyer@example.com", product.ID, "123456"); !errors.Is(err, ErrQueueUnavailable) {
		t.Fatalf("want ErrQueueUnavailable got %v", err)
	}

	if stock := saleStock(t, deps, sale.ID); stock != 5 {
		t.Fatalf("stock must be restored to 5, got %d", stock)
	}
	record, err := deps.records.GetByEmailAndSale("buyer@example.com", sale.ID)
	if err != nil {
		t.Fatalf("reload record failed: %v", err)
	}
	if record != nil {
		t.Fatalf("record must be rolled back, got %+v", record)
	}
}

// blindPurchaseRepo 让存在性预检永远落空，迫使唯一约束成为最后防线
type blindPurchaseRepo struct {
	repository.PurchaseRepository
}

func (r *blindPurchaseRepo) GetByEmailAndSale(email string, flashSaleID uint) (*models.PurchaseRecord, error) {
	return nil, nil
}

func TestVerifyPurchaseUniqueRaceRollsBackStock(t *testing.T) {
	_, deps := setupPurchaseServiceTest(t)
	product, sale := seedActiveSale(t, deps, 10, 5)
	seedVerifyCode(t, deps, "buyer@example.com", "123456", timeNow().Add(10*time.Minute))

	if err := deps.records.Create(&models.PurchaseRecord{
		Email:       "buyer@example.com",
		ProductID:   product.ID,
		FlashSaleID: sale.ID,
		Status:      constants.PurchaseStatusReserved,
	}); err != nil {
		t.Fatalf("seed record failed: %v", err)
	}

	svc := NewPurchaseService(
		deps.products,
		deps.sales,
		repository.NewCustomerRepository(deps.db),
		deps.codes,
		&blindPurchaseRepo{PurchaseRepository: deps.records},
		deps.enqueuer,
		deps.mailer,
		testConfig(),
	)

	if _, err := svc.VerifyPurchase("buyer@example.com", product.ID, "123456"); !errors.Is(err, ErrDuplicateRequest) {
		t.Fatalf("want ErrDuplicateRequest got %v", err)
	}
	// 输掉唯一约束的一方必须回补自己扣掉的库存
	if stock := saleStock(t, deps, sale.ID); stock != 5 {
		t.Fatalf("stock must be rolled back to 5, got %d", stock)
	}
	if deps.enqueuer.count() != 0 {
		t.Fatalf("nothing should be enqueued, got %d", deps.enqueuer.count())
	}
}

func TestVerifyPurchaseDuplicateSameSale(t *testing.T) {
	svc, deps := setupPurchaseServiceTest(t)
	product, sale := seedActiveSale(t, deps, 10, 5)
	seedVerifyCode(t, deps, "buyer@example.com", "123456", timeNow().Add(10*time.Minute))

	if err := deps.records.Create(&models.PurchaseRecord{
		Email:       "buyer@example.com",
		ProductID:   product.ID,
		FlashSaleID: sale.ID,
		Status:      constants.PurchaseStatusConfirmed,
	}); err != nil {
		t.Fatalf("seed record failed: %v", err)
	}

	if _, err := svc.VerifyPurchase("buyer@example.com", product.ID, "123456"); !errors.Is(err, ErrDuplicateRequest) {
		t.Fatalf("want ErrDuplicateRequest got %v", err)
	}
	if stock := saleStock(t, deps, sale.ID); stock != 5 {
		t.Fatalf("stock must be untouched, got %d", stock)
	}
}

func TestConcurrentVerifyLastUnit(t *testing.T) {
	svc, deps := setupPurchaseServiceTest(t)
	product, sale := seedActiveSale(t, deps, 10, 1)
	seedVerifyCode(t, deps, "a@example.com", "111111", timeNow().Add(10*time.Minute))
	seedVerifyCode(t, deps, "b@example.com", "222222", timeNow().Add(10*time.Minute))

	type attempt struct {
		email string
		code  string
	}
	attempts := []attempt{
		{email: "a@example.com", code: "111111"},
		{email: "b@example.com", code: "222222"},
	}

	var wg sync.WaitGroup
	results := make([]error, len(attempts))
	for i, a := range attempts {
		wg.Add(1)
		go func(i int, a attempt) {
			defer wg.Done()
			_, err := svc.VerifyPurchase(a.email, product.ID, a.code)
			results[i] = err
		}(i, a)
	}
	wg.Wait()

	winners := 0
	losers := 0
	for _, err := range results {
		switch {
		case err == nil:
			winners++
		// 落败方视交错时机可能看到扣减失败或场次已失活
		case errors.Is(err, ErrSoldOut), errors.Is(err, ErrSaleNotActive):
			losers++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 || losers != 1 {
		t.Fatalf("want 1 winner and 1 loser, got %d/%d", winners, losers)
	}
	if stock := saleStock(t, deps, sale.ID); stock != 0 {
		t.Fatalf("final stock want 0 got %d", stock)
	}

	var count int64
	if err := deps.db.Model(&models.PurchaseRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("count records failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("purchase records want 1 got %d", count)
	}
}

func TestRandomNumericCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		code, err := randomNumericCode(6)
		if err != nil {
			t.Fatalf("generate code failed: %v", err)
		}
		if !isNumericCode(code, 6) {
			t.Fatalf("code %q is not a 6-digit number", code)
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Fatalf("codes should vary, got %d distinct", len(seen))
	}
}

func TestNormalizeEmail(t *testing.T) {
	got, err := normalizeEmail("  Buyer@Example.COM ")
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if got != "buyer@example.com" {
		t.Fatalf("want buyer@example.com got %s", got)
	}

	for _, bad := range []string{"", "not-an-email", "a@", "@b.com"} {
		if _, err := normalizeEmail(bad); !errors.Is(err, ErrInvalidEmail) {
			t.Fatalf("input %q want ErrInvalidEmail got %v", bad, err)
		}
	}
}
