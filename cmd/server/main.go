package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"hvac-dispatch/internal/config"
	"hvac-dispatch/internal/dispatch"
	"hvac-dispatch/internal/http/handler"
	"hvac-dispatch/internal/logger"
	"hvac-dispatch/internal/messaging"
	"hvac-dispatch/internal/realtime"
	"hvac-dispatch/internal/repository"
	"hvac-dispatch/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	config.LoadEnv()
	cfg := config.Load()

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat, "hvac-dispatch")
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.InitDB(cfg.Database, zl)
	if err != nil {
		zl.Fatal("database unavailable", zap.Error(err))
	}
	defer config.CloseDB(db)

	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(ctx, db, zl); err != nil {
			zl.Fatal("migration failed", zap.Error(err))
		}
	}

	deps := dispatch.Deps{
		Orders:         repository.NewOrderRepository(db, zl.Named("orders_repo")),
		Certifications: repository.NewCertificationRepository(db, zl.Named("certs_repo")),
		Events:         repository.NewEventRepository(db, zl.Named("events_repo")),
		Photos:         repository.NewPhotoRepository(db, zl.Named("photos_repo")),
		Inventory:      repository.NewInventoryRepository(db, zl.Named("inventory_repo")),
		Logger:         zl,
	}
	users := repository.NewUserRepository(db, zl.Named("users_repo"))
	deps.Users = users

	// Position cell and fan-out
	switch cfg.RealtimeBackend {
	case "memory":
		hub := realtime.NewHub(zl.Named("hub"))
		go hub.Run(ctx)
		deps.Positions = realtime.NewMemoryPositions()
		deps.Channel = hub
	default:
		rdb, err := config.InitRedis(ctx, cfg.Redis, zl)
		if err != nil {
			zl.Fatal("redis unavailable", zap.Error(err))
		}
		defer rdb.Close()
		deps.Positions = realtime.NewRedisPositions(rdb)
		deps.Channel = realtime.NewRedisChannel(rdb, zl.Named("redis_channel"))
	}

	app := fiber.New(fiber.Config{
		Prefork:       false,
		CaseSensitive: true,
		StrictRouting: true,
		BodyLimit:     12 * 1024 * 1024,
	})

	// Photo storage
	if cfg.Minio.Endpoint != "" {
		store, err := storage.NewMinioStore(ctx, cfg.Minio, zl.Named("minio"))
		if err != nil {
			zl.Fatal("object storage unavailable", zap.Error(err))
		}
		deps.Objects = store
	} else {
		store, err := storage.NewLocalStore(cfg.UploadDir, cfg.PublicBaseURL+"/files")
		if err != nil {
			zl.Fatal("upload dir unavailable", zap.Error(err))
		}
		app.Static("/files", cfg.UploadDir)
		deps.Objects = store
		zl.Warn("MINIO_ENDPOINT not set, storing photos on local disk", zap.String("dir", cfg.UploadDir))
	}

	// Lifecycle feed for billing and loyalty consumers
	if cfg.RabbitMQURL != "" {
		pub, err := messaging.Dial(cfg.RabbitMQURL, cfg.Exchange, zl.Named("rabbitmq"))
		if err != nil {
			zl.Fatal("rabbitmq unavailable", zap.Error(err))
		}
		defer pub.Close()
		deps.Publisher = pub
	}

	engine := dispatch.NewEngine(deps, dispatch.Options{
		LocateTimeout:    cfg.LocateTimeout,
		UnknownCategory:  cfg.UnknownCategoryPolicy,
		Location:         cfg.Location(),
		PublicRefresh:    cfg.PublicRefresh,
		LifecycleTimeout: cfg.LifecycleTimeout,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "HVAC dispatch API running",
		})
	})

	h := handler.New(
		engine,
		users,
		repository.NewCustomerRepository(db, zl.Named("customers_repo")),
		repository.NewCertificationRepository(db, zl.Named("certs_repo")),
		cfg.PublicBaseURL,
		zl.Named("http"),
	)
	h.Register(app)

	go func() {
		<-ctx.Done()
		zl.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			zl.Error("shutdown failed", zap.Error(err))
		}
	}()

	zl.Info("server listening", zap.String("addr", cfg.Addr()), zap.String("realtime", cfg.RealtimeBackend))
	if err := app.Listen(cfg.Addr()); err != nil {
		zl.Error("server stopped", zap.Error(err))
	}
}
