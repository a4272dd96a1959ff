package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/campusgig/campusgig-backend/internal/config"
	"github.com/campusgig/campusgig-backend/internal/db"
	"github.com/campusgig/campusgig-backend/internal/handlers"
	"github.com/campusgig/campusgig-backend/internal/logger"
	"github.com/campusgig/campusgig-backend/internal/middleware"
	"github.com/campusgig/campusgig-backend/internal/models"
	"github.com/campusgig/campusgig-backend/internal/realtime"
	"github.com/campusgig/campusgig-backend/internal/services/bidding"
	"github.com/campusgig/campusgig-backend/internal/services/chat"
	"github.com/campusgig/campusgig-backend/internal/services/lifecycle"
	"github.com/campusgig/campusgig-backend/internal/services/notify"
	"github.com/campusgig/campusgig-backend/internal/services/razorpay"
	"github.com/campusgig/campusgig-backend/internal/services/stats"
	"github.com/campusgig/campusgig-backend/internal/services/wallet"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	zlog, err := logger.New(cfg.AppEnv)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = zlog.Sync() }()

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		zlog.Fatal("connect database", zap.Error(err))
	}
	if err := db.Migrate(gdb); err != nil {
		zlog.Fatal("migrate", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := realtime.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		zlog.Fatal("connect redis", zap.Error(err))
	}
	defer rdb.Close()
	zlog.Info("redis connected", zap.String("addr", cfg.RedisAddr))

	dispatcher := notify.NewDispatcher(notify.NewRedisNotifier(rdb),
		cfg.NotifyWorkers, cfg.NotifyQueueSize, cfg.NotifyTimeout, zlog)
	dispatcher.Start()

	hub := realtime.NewHub(zlog)
	go hub.Run()
	presence := realtime.NewRegistry(rdb, zlog)
	presence.Clear()

	rz := razorpay.NewRazorpayService(cfg.RazorpayKeyID, cfg.RazorpayKeySecret,
		cfg.RazorpayWebhookSecret, cfg.RazorpayBaseURL)

	jobSvc := lifecycle.NewService(gdb, dispatcher, rz, zlog)
	bidSvc := bidding.NewService(gdb, dispatcher, zlog)
	chatSvc := chat.NewService(gdb, zlog)
	statsSvc := stats.NewService(gdb)
	walletSvc := wallet.NewWalletService(gdb)
	gateway := realtime.NewGateway(hub, presence, chatSvc, zlog)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(zlog),
		BodyLimit:    12 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(middleware.RequestLog(zlog))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Content-Length",
		AllowCredentials: true,
	}))

	app.Static("/uploads", cfg.UploadDir)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true})
	})

	authH := &handlers.AuthHandler{
		DB:        gdb,
		JWTSecret: cfg.JWTSecret,
		Expires:   cfg.JWTExpiresMin,
		Secure:    cfg.IsProduction(),
		Log:       zlog,
	}
	googleH := &handlers.GoogleOAuthHandler{
		DB:              gdb,
		JWTSecret:       cfg.JWTSecret,
		Expires:         cfg.JWTExpiresMin,
		Secure:          cfg.IsProduction(),
		GoogleClientID:  cfg.GoogleClientID,
		GoogleSecret:    cfg.GoogleSecret,
		GoogleRedirect:  cfg.GoogleRedirect,
		FrontendBaseURL: cfg.FrontendBaseURL,
		Log:             zlog,
	}
	categoryH := handlers.NewCategoryHandler(gdb, zlog)
	jobH := handlers.NewJobHandler(jobSvc, bidSvc, statsSvc, zlog)
	userH := handlers.NewUserHandler(gdb, jobSvc, statsSvc, walletSvc, zlog)
	payH := handlers.NewPaymentHandler(jobSvc, rz, zlog)
	chatH := handlers.NewChatHandler(chatSvc, hub, gateway, cfg.UploadDir, cfg.AppBaseURL, zlog)
	adminH := handlers.NewAdminHandler(gdb, statsSvc, zlog)

	api := app.Group("/api")

	// public
	api.Post("/auth/register", authH.Register)
	api.Post("/auth/login", authH.Login)
	api.Post("/auth/logout", authH.Logout)
	api.Get("/auth/google/start", googleH.GoogleStart)
	api.Get("/auth/google/callback", googleH.GoogleCallback)
	api.Get("/categories", categoryH.GetCategories)
	api.Post("/webhooks/razorpay", payH.HandleWebhook)

	// protected (JWT)
	protected := api.Group("/",
		middleware.JWT(cfg.JWTSecret),
		middleware.AttachJWTLocals(),
	)
	protected.Get("/auth/me", authH.Me)
	protected.Post("/jobs/:id/create-payment", payH.CreatePayment)
	jobH.Register(protected)
	userH.Register(protected)
	chatH.Register(protected)
	adminH.Routes(protected, middleware.RequireRoles(models.RoleAdmin))

	// websocket, authenticated with ?token=
	app.Get("/ws",
		handlers.UpgradeOnly,
		middleware.JWT(cfg.JWTSecret),
		middleware.AttachJWTLocals(),
		websocket.New(chatH.WebSocketHandler),
	)

	go func() {
		if err := app.Listen(":" + cfg.AppPort); err != nil {
			zlog.Error("listen", zap.Error(err))
			stop()
		}
	}()
	zlog.Info("listening", zap.String("port", cfg.AppPort), zap.String("env", cfg.AppEnv))

	<-ctx.Done()
	zlog.Info("shutting down")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		zlog.Warn("http shutdown", zap.Error(err))
	}
	hub.Stop()
	presence.Clear()
	dispatcher.Stop()
}
