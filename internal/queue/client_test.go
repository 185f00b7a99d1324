package queue

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/franzbiely/flash-sale-system/internal/config"
)

func TestNewPurchaseFulfillTask(t *testing.T) {
	payload := PurchaseFulfillPayload{
		PurchaseID:  42,
		Email:       "buyer@example.com",
		ProductID:   7,
		FlashSaleID: 3,
		EnqueuedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	task, err := NewPurchaseFulfillTask(payload)
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	if task.Type() != TaskPurchaseFulfill {
		t.Fatalf("task type want %s got %s", TaskPurchaseFulfill, task.Type())
	}

	var decoded PurchaseFulfillPayload
	if err := json.Unmarshal(task.Payload(), &decoded); err != nil {
		t.Fatalf("decode payload failed: %v", err)
	}
	if decoded.PurchaseID != 42 || decoded.Email != "buyer@example.com" {
		t.Fatalf("payload round trip mismatch: %+v", decoded)
	}
}

func TestDisabledClientRejectsEnqueue(t *testing.T) {
	client, err := NewClient(&config.QueueConfig{Enabled: false}, 0)
	if err != nil {
		t.Fatalf("new disabled client failed: %v", err)
	}
	if client.Enabled() {
		t.Fatalf("disabled client must report disabled")
	}
	if err := client.EnqueuePurchaseFulfill(PurchaseFulfillPayload{PurchaseID: 1}); !errors.Is(err, ErrQueueDisabled) {
		t.Fatalf("want ErrQueueDisabled got %v", err)
	}
	if _, err := client.QueueStats(); !errors.Is(err, ErrQueueDisabled) {
		t.Fatalf("stats on disabled client want ErrQueueDisabled got %v", err)
	}
}

func TestBuildServerConfigDefaults(t *testing.T) {
	opt, cfg := BuildServerConfig(nil)
	if opt.Addr != "127.0.0.1:6379" {
		t.Fatalf("default addr want 127.0.0.1:6379 got %s", opt.Addr)
	}
	if cfg.Concurrency != 10 {
		t.Fatalf("default concurrency want 10 got %d", cfg.Concurrency)
	}
	if weight, ok := cfg.Queues[DefaultQueue]; !ok || weight != 1 {
		t.Fatalf("default queue weight want 1 got %+v", cfg.Queues)
	}

	opt, cfg = BuildServerConfig(&config.QueueConfig{
		Host:        "redis.internal",
		Port:        6380,
		Concurrency: 4,
		Queues:      map[string]int{"default": 8},
	})
	if opt.Addr != "redis.internal:6380" {
		t.Fatalf("addr want redis.internal:6380 got %s", opt.Addr)
	}
	if cfg.Concurrency != 4 || cfg.Queues["default"] != 8 {
		t.Fatalf("configured server config mismatch: %+v", cfg)
	}
}
