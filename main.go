package main

import (
	"log"
	"time"

	"qbank/cache"
	"qbank/config"
	adminController "qbank/controllers/admin"
	practiceController "qbank/controllers/practice"
	"qbank/database"
	"qbank/practice"
	adminRoutes "qbank/routers/adminRoutes"
	practiceRoutes "qbank/routers/practiceRoutes"
	"qbank/stats"
	"qbank/store"
	"qbank/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	config.LoadConfig()
	cfg := config.AppConfig

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	st := store.New(db, cfg.StoreRetries)
	usage := stats.NewAggregator()

	codec := &cache.Codec{Threshold: cfg.CompressionThreshold}
	pool := cache.NewRedisPool(
		cfg.RedisHost+":"+cfg.RedisPort,
		cfg.RedisPassword,
		cfg.RedisDB,
		time.Duration(cfg.RedisTimeout)*time.Millisecond,
	)
	hybrid := cache.NewHybridCache(
		cache.NewMemoryCache(cfg.LocalCacheSize, time.Duration(cfg.TikuListTTL)*time.Second),
		cache.NewRedisCache(pool, codec),
		codec,
		st,
		usage,
		cache.TTLPolicy{
			TikuList:  time.Duration(cfg.TikuListTTL) * time.Second,
			BankIndex: time.Duration(cfg.BankIndexTTL) * time.Second,
			Question:  time.Duration(cfg.QuestionTTL) * time.Second,
		},
		cfg.WarmupBankLimit,
	)

	manager := practice.NewManager(hybrid, st, usage, practice.NewGenerator())
	defer manager.Close()

	scheduler := utils.InitializeSchedulers(cfg, hybrid, manager, usage, st)
	defer scheduler.Stop()

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE",        // Allowed HTTP methods
		AllowHeaders: "Content-Type,Authorization", // Allowed headers
	}))

	// Enable the built-in logger middleware to log all requests
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status} ${latency}\n",
	}))

	practiceRoutes.SetupPracticeRoutes(app, practiceController.New(hybrid, manager))
	adminRoutes.SetupAdminRoutes(app, adminController.New(hybrid, usage, st, manager))

	log.Printf("Server is running on port %s", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}
