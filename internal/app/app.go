package app

import (
	"context"
	"database/sql"
	"errors"
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

	"github.com/hitoshi/sitecache/internal/cache"
	"github.com/hitoshi/sitecache/internal/config"
	"github.com/hitoshi/sitecache/internal/content"
	"github.com/hitoshi/sitecache/internal/database"
	"github.com/hitoshi/sitecache/internal/dateparse"
	"github.com/hitoshi/sitecache/internal/handler"
	"github.com/hitoshi/sitecache/internal/logger"
	"github.com/hitoshi/sitecache/internal/metrics"
	"github.com/hitoshi/sitecache/internal/middleware"
	"github.com/hitoshi/sitecache/internal/repository"
	"github.com/hitoshi/sitecache/internal/tracing"
	"github.com/hitoshi/sitecache/internal/worker/warm"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルを反映する
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to set log level: %w", err)
	}

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

	shutdownTracing, err := tracing.Setup(cfg.TraceExporter, w)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			slog.Warn("tracer shutdown failed", slog.String("error", err.Error()))
		}
	}()

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.Bool("redis_enabled", cfg.RedisAddr != ""),
	)

	switch cmd {
	case CommandWarm:
		return runWarm(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// components はserveとwarmで共有する依存関係。
type components struct {
	db          *sql.DB
	registry    *prometheus.Registry
	collector   *metrics.Collector
	siteRepo    *repository.PostgresSiteRepo
	channelRepo *repository.PostgresChannelRepo
	contentSvc  *content.Service
	closers     []func()
}

// Close は確保したリソースを逆順に解放する。
func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// newComponents はDB接続、キャッシュ、リポジトリ、コンテンツサービスを構築する。
func newComponents(cfg *config.Config) (*components, error) {
	c := &components{}

	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	c.db = db
	c.closers = append(c.closers, func() { db.Close() })

	if err := db.Ping(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. メトリクス
	c.registry = prometheus.NewRegistry()
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.collector = metrics.NewCollector(c.registry)

	// 3. キャッシュストア
	store, err := newCacheStore(cfg, c)
	if err != nil {
		c.Close()
		return nil, err
	}

	// 4. リポジトリ
	exec := repository.NewPostgresExecutor(db, c.collector)
	tables := repository.NewContentTables(exec, cache.NewManager(store), c.collector)
	c.siteRepo = repository.NewPostgresSiteRepo(db)
	c.channelRepo = repository.NewPostgresChannelRepo(db)

	// 5. コンテンツサービス
	c.contentSvc = content.NewService(
		tables, c.channelRepo, dateparse.New(time.Local), c.collector, slog.Default(),
		content.Options{Concurrency: cfg.AggregateConcurrency},
	)

	return c, nil
}

// newCacheStore はL1（プロセス内）と、REDIS_ADDRが設定されている場合はL2（Redis）を構成する。
// Redisに接続できない場合も起動は継続し、L2はミスとして扱われる。
func newCacheStore(cfg *config.Config, c *components) (cache.Store, error) {
	l1, err := cache.NewL1(cfg.CacheL1MaxEntries, cfg.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create L1 cache: %w", err)
	}
	c.closers = append(c.closers, l1.Close)

	if cfg.RedisAddr == "" {
		slog.Info("cache configured", slog.String("tiers", "l1"))
		return l1, nil
	}

	l2 := cache.NewL2(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL, slog.Default())
	c.closers = append(c.closers, func() { l2.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := l2.Ping(ctx); err != nil {
		slog.Warn("redis unreachable, continuing with degraded L2",
			slog.String("addr", cfg.RedisAddr),
			slog.String("error", err.Error()),
		)
	}

	slog.Info("cache configured", slog.String("tiers", "l1+l2"))
	return cache.NewTiered(l1, l2), nil
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	c, err := newComponents(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(cfg.RateLimitPerMinute))
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		HealthChecker:     c.db,
		Sites:             c.siteRepo,
		Channels:          c.channelRepo,
		ContentService:    c.contentSvc,
		MetricsHandler:    metrics.Handler(c.registry),
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return serveUntilSignal(server, "API server")
}

// runWarm はキャッシュウォーマーモードで起動する。
// /metricsのみを公開し、ウォームサイクルをメインgoroutineで実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWarm(cfg *config.Config) error {
	c, err := newComponents(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	scheduler := warm.NewScheduler(
		c.siteRepo, c.channelRepo, c.contentSvc, slog.Default(), c.collector,
		warm.Config{
			MaxConcurrency: cfg.WarmMaxConcurrent,
			RecentHours:    cfg.WarmRecentHours,
			SitesPerSecond: cfg.WarmSitesPerSecond,
		},
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           metrics.SetupMetricsRoute(c.registry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("warmer starting",
		slog.Duration("warm_interval", cfg.WarmInterval),
		slog.Int("max_concurrent", cfg.WarmMaxConcurrent),
		slog.Int("recent_hours", cfg.WarmRecentHours),
	)

	// ウォームスケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.WarmInterval)

	slog.Info("warmer stopped gracefully")
	return nil
}

// serveUntilSignal はサーバーを起動し、シグナル受信でグレースフルシャットダウンする。
func serveUntilSignal(server *http.Server, name string) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		slog.Info(name+" starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen failed: %w", err)
	case <-stop:
	}

	slog.Info("shutting down " + name + "...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info(name + " stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := database.Version(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
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
