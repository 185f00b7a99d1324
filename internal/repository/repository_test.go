package repository

import (
	"fmt"
	"strings"
	"testing"

	"github.com/franzbiely/flash-sale-system/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// openTestDB 每个测试用例一个独立的内存库，单连接保证写入串行
func openTestDB(t *testing.T) *gorm.DB {
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
	return db
}

func createTestProduct(t *testing.T, db *gorm.DB, slug string, totalStock int) *models.Product {
	t.Helper()
	product := &models.Product{
		Slug:       slug,
		Title:      "测试商品",
		TotalStock: totalStock,
		IsActive:   true,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	return product
}
