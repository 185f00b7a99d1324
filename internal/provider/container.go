package provider

import (
	"time"

	"github.com/franzbiely/flash-sale-system/internal/cache"
	"github.com/franzbiely/flash-sale-system/internal/config"
	"github.com/franzbiely/flash-sale-system/internal/logger"
	"github.com/franzbiely/flash-sale-system/internal/models"
	"github.com/franzbiely/flash-sale-system/internal/queue"
	"github.com/franzbiely/flash-sale-system/internal/repository"
	"github.com/franzbiely/flash-sale-system/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	ProductRepo         repository.ProductRepository
	FlashSaleRepo       repository.FlashSaleRepository
	CustomerRepo        repository.CustomerRepository
	EmailVerifyCodeRepo repository.EmailVerifyCodeRepository
	PurchaseRepo        repository.PurchaseRepository

	// Services
	EmailService     *service.EmailService
	Mailer           service.PurchaseMailer
	PurchaseService  *service.PurchaseService
	ProductService   *service.ProductService
	FlashSaleService *service.FlashSaleService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		timeout := time.Duration(cfg.Purchase.FulfillTimeoutSecond) * time.Second
		qc, err := queue.NewClient(&cfg.Queue, timeout)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	c.initRepositories()
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.ProductRepo = repository.NewProductRepository(db)
	c.FlashSaleRepo = repository.NewFlashSaleRepository(db)
	c.CustomerRepo = repository.NewCustomerRepository(db)
	c.EmailVerifyCodeRepo = repository.NewEmailVerifyCodeRepository(db)
	c.PurchaseRepo = repository.NewPurchaseRepository(db)
}

func (c *Container) initServices() {
	c.EmailService = service.NewEmailService(&c.Config.Email)
	c.Mailer = c.EmailService
	c.ProductService = service.NewProductService(c.ProductRepo)
	c.FlashSaleService = service.NewFlashSaleService(c.FlashSaleRepo)
	c.PurchaseService = service.NewPurchaseService(
		c.ProductRepo,
		c.FlashSaleRepo,
		c.CustomerRepo,
		c.EmailVerifyCodeRepo,
		c.PurchaseRepo,
		c.QueueClient,
		c.Mailer,
		c.Config,
	)
}
