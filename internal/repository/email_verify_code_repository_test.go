package repository

import (
	"testing"
	"time"

	"github.com/franzbiely/flash-sale-system/internal/models"
)

func TestReplaceInvalidatesPriorCodes(t *testing.T) {
	db := openTestDB(t)
	repo := NewEmailVerifyCodeRepository(db)
	now := time.Now()

	first := &models.EmailVerifyCode{
		Email:     "buyer@example.com",
		Code:      "111111",
		ExpiresAt: now.Add(10 * time.Minute),
		SentAt:    now,
	}
	if err := repo.Replace(first); err != nil {
		t.Fatalf("replace first code failed: %v", err)
	}

	second := &models.EmailVerifyCode{
		Email:     "buyer@example.com",
		Code:      "222222",
		ExpiresAt: now.Add(10 * time.Minute),
		SentAt:    now.Add(time.Minute),
	}
	if err := repo.Replace(second); err != nil {
		t.Fatalf("replace second code failed: %v", err)
	}

	var count int64
	if err := db.Model(&models.EmailVerifyCode{}).Where("email = ?", "buyer@example.com").Count(&count).Error; err != nil {
		t.Fatalf("count codes failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("codes per email want 1 got %d", count)
	}

	latest, err := repo.GetLatest("buyer@example.com")
	if err != nil {
		t.Fatalf("get latest failed: %v", err)
	}
	if latest == nil || latest.Code != "222222" {
		t.Fatalf("latest code want 222222 got %+v", latest)
	}
}

func TestDeleteExpiredKeepsValidCodes(t *testing.T) {
	db := openTestDB(t)
	repo := NewEmailVerifyCodeRepository(db)
	now := time.Now()

	expired := &models.EmailVerifyCode{
		Email:     "old@example.com",
		Code:      "111111",
		ExpiresAt: now.Add(-time.Minute),
		SentAt:    now.Add(-11 * time.Minute),
	}
	valid := &models.EmailVerifyCode{
		Email:     "new@example.com",
		Code:      "222222",
		ExpiresAt: now.Add(10 * time.Minute),
		SentAt:    now,
	}
	if err := repo.Replace(expired); err != nil {
		t.Fatalf("create expired code failed: %v", err)
	}
	if err := repo.Replace(valid); err != nil {
		t.Fatalf("create valid code failed: %v", err)
	}

	deleted, err := repo.DeleteExpired(now)
	if err != nil {
		t.Fatalf("delete expired failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted want 1 got %d", deleted)
	}

	remaining, err := repo.GetLatest("new@example.com")
	if err != nil {
		t.Fatalf("get latest failed: %v", err)
	}
	if remaining == nil {
		t.Fatalf("valid code should survive cleanup")
	}
	gone, err := repo.GetLatest("old@example.com")
	if err != nil {
		t.Fatalf("get latest failed: %v", err)
	}
	if gone != nil {
		t.Fatalf("expired code should be removed, got %+v", gone)
	}
}
