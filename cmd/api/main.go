package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/satoakira/go-event-management/internal/api"
	"github.com/satoakira/go-event-management/internal/api/handler"
	custommiddleware "github.com/satoakira/go-event-management/internal/api/middleware"
	"github.com/satoakira/go-event-management/internal/application"
	"github.com/satoakira/go-event-management/internal/config"
	"github.com/satoakira/go-event-management/internal/infrastructure/assets"
	"github.com/satoakira/go-event-management/internal/infrastructure/postgres"
	redisinfra "github.com/satoakira/go-event-management/internal/infrastructure/redis"
	"github.com/satoakira/go-event-management/internal/pkg/logger"
	"github.com/satoakira/go-event-management/internal/pkg/metrics"
	"github.com/satoakira/go-event-management/internal/worker"
)

func main() {
	cfg := config.Load()

	// ロガー初期化
	log := logger.NewLogger(os.Getenv("APP_ENV"))
	logger.Set(log)
	defer logger.Sync()

	// PostgreSQL接続
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("データベース接続に失敗しました", zap.Error(err))
	}
	defer db.Close()

	// マイグレーション実行
	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		migrationsPath = "migrations"
	}
	if err := postgres.RunMigrations(db.DB, migrationsPath); err != nil {
		logger.Fatal("マイグレーションに失敗しました", zap.Error(err))
	}

	// Redis接続（認証トークン・分散ロック・空き枠キャッシュに必須）
	redisClient := redisinfra.NewClient(&cfg.Redis)
	defer redisClient.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := redisinfra.Ping(pingCtx, redisClient); err != nil {
		logger.Fatal("Redis接続に失敗しました", zap.Error(err))
	}

	// メトリクス初期化
	m := metrics.New()

	// インフラ層
	eventRepo := postgres.NewEventRepository(db)
	userRepo := postgres.NewUserRepository(db)
	txManager := postgres.NewTxManager(db)
	lockManager := redisinfra.NewLockManager(redisClient)
	slotCache := redisinfra.NewSlotCache(redisClient)
	tokenStore := redisinfra.NewTokenStore(redisClient, cfg.Auth.TokenTTL)

	var posterStore assets.PosterStore
	if cfg.Assets.Endpoint != "" {
		posterStore = assets.NewHTTPPosterStore(cfg.Assets.Endpoint, cfg.Assets.APIKey)
	} else {
		posterStore = assets.NewNoopPosterStore()
	}

	// アプリケーション層
	eventService := application.NewEventService(eventRepo, posterStore, slotCache)
	registrationService := application.NewRegistrationService(txManager, eventRepo, userRepo, lockManager, slotCache, m)
	userService := application.NewUserService(userRepo, cfg.Auth.BcryptCost)
	authService := application.NewAuthService(userRepo, tokenStore, cfg.Auth.BcryptCost)

	// 初期管理者作成
	adminCtx, adminCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer adminCancel()
	if err := authService.EnsureInitialAdmin(adminCtx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword, cfg.Auth.AdminName); err != nil {
		logger.Fatal("初期管理者の作成に失敗しました", zap.Error(err))
	}

	// Echo設定
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler

	custommiddleware.SetupMiddleware(e)
	e.Use(custommiddleware.PrometheusMiddleware(m))

	// ハンドラー
	healthHandler := handler.NewHealthHandler()
	authHandler := handler.NewAuthHandler(authService)
	eventHandler := handler.NewEventHandler(eventService)
	registrationHandler := handler.NewRegistrationHandler(registrationService, eventService)
	userHandler := handler.NewUserHandler(userService)

	requireAuth := custommiddleware.RequireAuth(authService)
	requireAdmin := custommiddleware.RequireAdmin()

	// メトリクスエンドポイント
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), custommiddleware.MetricsBasicAuth())

	// ルーティング
	v1 := e.Group("/api/v1")
	v1.GET("/health", healthHandler.Check)

	// 認証
	v1.POST("/auth/login", authHandler.Login)
	v1.POST("/auth/logout", authHandler.Logout, requireAuth)
	v1.GET("/auth/me", authHandler.Me, requireAuth)

	// イベント（参照は公開、作成は認証済みユーザー、変更は作成者または管理者）
	v1.GET("/events", eventHandler.List)
	v1.GET("/events/options", eventHandler.Options)
	v1.GET("/events/:id", eventHandler.GetByID)
	v1.GET("/events/:id/slots", registrationHandler.AvailableSlots)
	v1.POST("/events", eventHandler.Create, requireAuth)
	v1.PUT("/events/:id", eventHandler.Update, requireAuth)
	v1.DELETE("/events/:id", eventHandler.Delete, requireAuth)

	// 参加登録（参加者一覧と出欠記録は作成者または管理者）
	v1.POST("/events/:id/registrations", registrationHandler.Register, requireAuth)
	v1.DELETE("/events/:id/registrations/:user_id", registrationHandler.Unregister, requireAuth)
	v1.GET("/events/:id/attendees", registrationHandler.ListAttendees, requireAuth)
	v1.PATCH("/events/:id/attendees/:user_id/attendance", registrationHandler.MarkAttendance, requireAuth)

	// ユーザー（登録は公開、本人更新以外は管理者のみ）
	v1.POST("/users", userHandler.Create)
	v1.GET("/users", userHandler.List, requireAuth, requireAdmin)
	v1.GET("/users/:id", userHandler.GetByID, requireAuth, requireAdmin)
	v1.PUT("/users/:id", userHandler.Update, requireAuth)
	v1.DELETE("/users/:id", userHandler.Delete, requireAuth, requireAdmin)

	// バックグラウンドワーカー
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	slotRefresher := worker.NewSlotCacheRefresher(registrationService, cfg.Worker.SlotRefreshInterval)
	go slotRefresher.Start(workerCtx)

	// サーバー起動
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	logger.Info("サーバーを起動しました", zap.String("port", cfg.Server.Port))

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	// ワーカー停止
	slotRefresher.Stop()
	workerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("サーバーシャットダウンエラー", zap.Error(err))
	}

	logger.Info("サーバーが正常にシャットダウンしました")
}
