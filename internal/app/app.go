// Package app はサブコマンドごとの依存関係のワイヤリングと起動を行う。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/shoppingfeed/internal/config"
	"github.com/hitoshi/shoppingfeed/internal/database"
	"github.com/hitoshi/shoppingfeed/internal/feed"
	"github.com/hitoshi/shoppingfeed/internal/handler"
	"github.com/hitoshi/shoppingfeed/internal/logger"
	"github.com/hitoshi/shoppingfeed/internal/metrics"
	"github.com/hitoshi/shoppingfeed/internal/middleware"
	"github.com/hitoshi/shoppingfeed/internal/model"
	"github.com/hitoshi/shoppingfeed/internal/repository"
	"github.com/hitoshi/shoppingfeed/internal/security"
	"github.com/hitoshi/shoppingfeed/internal/worker/cleanup"
	"github.com/hitoshi/shoppingfeed/internal/worker/queue"
	"github.com/hitoshi/shoppingfeed/internal/worker/regen"
)

// cleanupInterval は終了済みジョブの削除間隔。
const cleanupInterval = 24 * time.Hour

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再設定
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("api_root_url", cfg.APIRootURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandGenerate:
		return runGenerate(cfg, args[1:])
	default:
		return runServe(cfg)
	}
}

// components はserve/worker/generateで共有する依存関係。
type components struct {
	shopRepo     repository.ShopRepository
	settingsRepo repository.SettingsRepository
	jobRepo      repository.JobRepository

	feedService *feed.FeedService
	generator   *feed.Generator
	queue       *queue.Queue
	scheduler   *regen.Scheduler
}

// newComponents はリポジトリ、ドメインサービス、ジョブキューを組み立てる。
func newComponents(db *sql.DB, cfg *config.Config, collector *metrics.Collector, log *slog.Logger) *components {
	// 1. リポジトリの初期化
	shopRepo := repository.NewPostgresShopRepo(db)
	catalogRepo := repository.NewPostgresCatalogRepo(db)
	shippingRepo := repository.NewPostgresShippingRepo(db)
	settingsRepo := repository.NewPostgresSettingsRepo(db)
	feedRepo := repository.NewPostgresFeedRepo(db)
	notificationRepo := repository.NewPostgresNotificationRepo(db)
	jobRepo := repository.NewPostgresJobRepo(db)

	// 2. ドメインサービスの初期化
	transformer := feed.NewItemTransformer(security.NewMarkupStripper(), cfg.FeedDefaultCurrency)
	generator := feed.NewGenerator(
		shopRepo, catalogRepo, shippingRepo, settingsRepo, feedRepo, notificationRepo,
		transformer, collector, log,
	)
	feedService := feed.NewFeedService(shopRepo, feedRepo, cfg.APIRootURL, collector)

	// 3. ジョブキューと再生成スケジューラ
	q := queue.NewQueue(jobRepo, log, collector, cfg.JobMaxConcurrent)
	scheduler := regen.NewScheduler(q, generator, shopRepo, settingsRepo, log)
	scheduler.WorkTimeout = cfg.JobWorkTimeout

	return &components{
		shopRepo:     shopRepo,
		settingsRepo: settingsRepo,
		jobRepo:      jobRepo,
		feedService:  feedService,
		generator:    generator,
		queue:        q,
		scheduler:    scheduler,
	}
}

// newMetrics はプロセス用のレジストリとCollectorを生成する。
func newMetrics() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// newRouter はAPIサーバーのルーターを組み立てる。
func newRouter(cfg *config.Config, c *components, db handler.HealthChecker, reg *prometheus.Registry, collector *metrics.Collector, rl *middleware.RateLimiter) (http.Handler, error) {
	tokens, err := middleware.ParseTokens(cfg.APITokens)
	if err != nil {
		return nil, fmt.Errorf("failed to parse API_TOKENS: %w", err)
	}
	if tokens.Len() == 0 {
		slog.Warn("API_TOKENS is empty; shop management endpoints will reject all requests")
	}
	if cfg.StorefrontURL == "" {
		slog.Warn("STOREFRONT_URL is empty; feed links will be built from the request Host header, which clients control")
	}

	return handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		HTTPMetrics:       collector,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rl,
		Tokens:            tokens,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(reg),

		FeedService:   c.feedService,
		StorefrontURL: cfg.StorefrontURL,

		Shops:     c.shopRepo,
		Settings:  c.settingsRepo,
		Scheduler: c.scheduler,
	}), nil
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.PoolOptions{
		MaxOpenConns:    cfg.JobMaxConcurrent + 10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	reg, collector := newMetrics()
	c := newComponents(db, cfg, collector, slog.Default())

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral))
	defer rl.Stop()

	router, err := newRouter(cfg, c, db, reg, collector, rl)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 再生成ジョブのワーカーを登録して全ショップの繰り返しジョブを登録し、
// ジョブキューのポーリングと終了済みジョブの削除を開始する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	reg, collector := newMetrics()
	c := newComponents(db, cfg, collector, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	if err := c.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start feed regeneration: %w", err)
	}

	// 終了済みジョブの削除を日次でバックグラウンド実行
	cleanupJob := cleanup.NewCleanupJob(c.jobRepo, slog.Default())
	cleanupJob.RetentionDays = cfg.PurgeAfterDays()
	go cleanupJob.Start(ctx, cleanupInterval)

	if cfg.MetricsPort != "" {
		metricsServer := &http.Server{
			Addr:              ":" + cfg.MetricsPort,
			Handler:           metrics.Handler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server listen error", slog.String("error", err.Error()))
			}
		}()
		defer metricsServer.Close()
	}

	slog.Info("worker starting",
		slog.Duration("poll_interval", cfg.JobPollInterval),
		slog.Int("max_concurrent", cfg.JobMaxConcurrent),
		slog.Duration("work_timeout", cfg.JobWorkTimeout),
	)

	// ジョブキューをメインgoroutineで実行（ブロッキング）
	c.queue.Start(ctx, cfg.JobPollInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runGenerate は指定ショップのフィードをその場で生成する。
// ジョブキューを経由しない運用向けのサブコマンド。
func runGenerate(cfg *config.Config, shopIDs []string) error {
	if len(shopIDs) == 0 {
		return model.ErrNoShopIDs
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	_, collector := newMetrics()
	c := newComponents(db, cfg, collector, slog.Default())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := c.generator.Generate(ctx, shopIDs, ""); err != nil {
		return fmt.Errorf("feed generation failed: %w", err)
	}
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(version)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
