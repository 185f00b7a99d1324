package main

import (
	"time"

	"github.com/franzbiely/flash-sale-system/internal/config"
	"github.com/franzbiely/flash-sale-system/internal/logger"
	"github.com/franzbiely/flash-sale-system/internal/models"

	"github.com/shopspring/decimal"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 添加演示商品
	products := []models.Product{
		{
			Slug:        "limited-sneaker",
			Title:       "限量联名球鞋",
			Description: "线上限量发售，每人限购一双。",
			PriceAmount: decimal.NewFromFloat(1299.00),
			TotalStock:  50,
			IsActive:    true,
		},
		{
			Slug:        "collector-figure",
			Title:       "收藏版手办",
			Description: "抢购专场限定款。",
			PriceAmount: decimal.NewFromFloat(499.00),
			TotalStock:  20,
			IsActive:    true,
		},
	}

	productIDs := map[string]uint{}
	for _, p := range products {
		var existing models.Product
		if err := models.DB.Where("slug = ?", p.Slug).First(&existing).Error; err != nil {
			if err := models.DB.Create(&p).Error; err != nil {
				stdLog.Printf("Failed to create product %s: %v", p.Slug, err)
				continue
			}
			stdLog.Printf("Created product: %s", p.Slug)
			productIDs[p.Slug] = p.ID
		} else {
			stdLog.Printf("Product already exists: %s", p.Slug)
			productIDs[p.Slug] = existing.ID
		}
	}

	// 添加进行中的抢购场次
	now := time.Now()
	sales := []models.FlashSale{
		{
			ProductID: productIDs["limited-sneaker"],
			Title:     "限量球鞋首发场",
			Stock:     30,
			StartAt:   now.Add(-time.Hour),
			EndAt:     now.Add(24 * time.Hour),
		},
		{
			ProductID: productIDs["collector-figure"],
			Title:     "手办闪购场",
			Stock:     10,
			StartAt:   now.Add(time.Hour),
			EndAt:     now.Add(48 * time.Hour),
		},
	}

	for _, s := range sales {
		if s.ProductID == 0 {
			continue
		}
		var count int64
		models.DB.Model(&models.FlashSale{}).
			Where("product_id = ? AND title = ?", s.ProductID, s.Title).
			Count(&count)
		if count > 0 {
			stdLog.Printf("Flash sale already exists: %s", s.Title)
			continue
		}
		if err := models.DB.Create(&s).Error; err != nil {
			stdLog.Printf("Failed to create flash sale %s: %v", s.Title, err)
			continue
		}
		stdLog.Printf("Created flash sale: %s", s.Title)
	}

	stdLog.Printf("Seed completed")
}
