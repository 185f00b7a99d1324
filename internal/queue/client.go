package queue

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/franzbiely/flash-sale-system/internal/config"
	"github.com/franzbiely/flash-sale-system/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// DefaultQueue 默认队列名称
	DefaultQueue = constants.QueueDefault

	defaultMaxRetry       = 5
	defaultFulfillTimeout = 30 * time.Second
)

// ErrQueueDisabled 队列未启用
var ErrQueueDisabled = errors.New("queue disabled")

// Client 队列客户端封装
type Client struct {
	client       *asynq.Client
	inspector    *asynq.Inspector
	enabled      bool
	defaultQueue string
	maxRetry     int
	taskTimeout  time.Duration
}

// Stats 队列运行状态计数
type Stats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Retry     int    `json:"retry"`
	Scheduled int    `json:"scheduled"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
}

// NewClient 创建队列客户端
func NewClient(cfg *config.QueueConfig, taskTimeout time.Duration) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return &Client{enabled: false, defaultQueue: DefaultQueue}, nil
	}
	opt := buildRedisOpt(cfg)
	maxRetry := cfg.MaxRetry
	if maxRetry <= 0 {
		maxRetry = defaultMaxRetry
	}
	if taskTimeout <= 0 {
		taskTimeout = defaultFulfillTimeout
	}
	return &Client{
		client:       asynq.NewClient(opt),
		inspector:    asynq.NewInspector(opt),
		enabled:      true,
		defaultQueue: DefaultQueue,
		maxRetry:     maxRetry,
		taskTimeout:  taskTimeout,
	}, nil
}

// Enabled 判断是否启用
func (c *Client) Enabled() bool {
	return c != nil && c.enabled && c.client != nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if c.inspector != nil {
		_ = c.inspector.Close()
	}
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueuePurchaseFulfill 推送抢购交付任务
//
// 入队失败必须向调用方同步暴露，预占阶段据此回滚库存。
func (c *Client) EnqueuePurchaseFulfill(payload PurchaseFulfillPayload) error {
	if !c.Enabled() {
		return ErrQueueDisabled
	}
	task, err := NewPurchaseFulfillTask(payload)
	if err != nil {
		return err
	}
	_, err = c.client.Enqueue(task,
		asynq.Queue(c.defaultQueue),
		asynq.MaxRetry(c.maxRetry),
		asynq.Timeout(c.taskTimeout),
	)
	return err
}

// QueueStats 查询默认队列的任务计数（运维可观测性）
func (c *Client) QueueStats() (*Stats, error) {
	if c == nil || c.inspector == nil {
		return nil, ErrQueueDisabled
	}
	info, err := c.inspector.GetQueueInfo(c.defaultQueue)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Queue:     info.Queue,
		Pending:   info.Pending,
		Active:    info.Active,
		Retry:     info.Retry,
		Scheduled: info.Scheduled,
		Completed: info.Completed,
		Failed:    info.Failed,
	}, nil
}

// BuildServerConfig 生成队列服务配置
func BuildServerConfig(cfg *config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	opt := buildRedisOpt(cfg)
	concurrency := 10
	if cfg != nil && cfg.Concurrency > 0 {
		concurrency = cfg.Concurrency
	}
	queues := map[string]int{DefaultQueue: 1}
	if cfg != nil && len(cfg.Queues) > 0 {
		queues = cfg.Queues
	}
	return opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      queues,
	}
}

func buildRedisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	host := "127.0.0.1"
	port := 6379
	password := ""
	db := 0
	if cfg != nil {
		if strings.TrimSpace(cfg.Host) != "" {
			host = strings.TrimSpace(cfg.Host)
		}
		if cfg.Port > 0 {
			port = cfg.Port
		}
		password = cfg.Password
		db = cfg.DB
	}
	return asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	}
}
