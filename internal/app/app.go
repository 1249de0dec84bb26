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

	"github.com/hitoshi/grosync/internal/auth"
	"github.com/hitoshi/grosync/internal/config"
	"github.com/hitoshi/grosync/internal/database"
	"github.com/hitoshi/grosync/internal/handler"
	"github.com/hitoshi/grosync/internal/logger"
	"github.com/hitoshi/grosync/internal/metrics"
	"github.com/hitoshi/grosync/internal/middleware"
	"github.com/hitoshi/grosync/internal/profile"
	"github.com/hitoshi/grosync/internal/repository"
	"github.com/hitoshi/grosync/internal/security"
	"github.com/hitoshi/grosync/internal/worker/expiry"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 30 * time.Second

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

	// 3. LOG_LEVELを反映する
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
		return runHealthcheck(fmt.Sprintf("http://localhost:%s/health", port))
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("firebase_project_id", cfg.FirebaseProjectID),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通確認を行う。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	return database.Connect(context.Background(), cfg.DatabaseURL, dbPoolConfig(cfg), 5*time.Second)
}

// dbPoolConfig は設定値からコネクションプール設定を組み立てる。0以下の値は既定値を使う。
func dbPoolConfig(cfg *config.Config) database.PoolConfig {
	pool := database.DefaultPoolConfig()
	if cfg.DBMaxOpenConns > 0 {
		pool.MaxOpenConns = cfg.DBMaxOpenConns
	}
	if cfg.DBMaxIdleConns > 0 {
		pool.MaxIdleConns = cfg.DBMaxIdleConns
	}
	if cfg.DBConnMaxLifetime > 0 {
		pool.ConnMaxLifetime = cfg.DBConnMaxLifetime
	}
	return pool
}

// newKeySetCache はREDIS_URLが設定されていればRedis、無ければメモリのJWKSキャッシュを返す。
// 返すclose関数は終了時に呼び出す。
func newKeySetCache(ctx context.Context, redisURL string) (auth.KeySetCache, func() error, error) {
	if redisURL == "" {
		return auth.NewMemoryKeySetCache(), func() error { return nil }, nil
	}

	cache, err := auth.NewRedisKeySetCache(ctx, redisURL)
	if err != nil {
		return nil, nil, err
	}
	return cache, cache.Close, nil
}

// newVerifier はJWKS URLを検証したうえでFirebase ID トークン検証器を構築する。
func newVerifier(cfg *config.Config, cache auth.KeySetCache, collector metrics.MetricsCollector) (*auth.FirebaseVerifier, error) {
	guard := security.NewOutboundGuard()
	if err := guard.ValidateURL(cfg.JWKSURL); err != nil {
		return nil, fmt.Errorf("invalid JWKS_URL: %w", err)
	}

	return auth.NewFirebaseVerifier(
		auth.VerifierConfig{
			ProjectID: cfg.FirebaseProjectID,
			JWKSURL:   cfg.JWKSURL,
			CacheTTL:  cfg.JWKSCacheTTL,
		},
		guard.NewSafeClient(cfg.JWKSFetchTimeout),
		cache,
		collector,
	), nil
}

// newRegistry はアプリケーションのメトリクスとランタイムのメトリクスを登録したレジストリを返す。
func newRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// profileLimits は設定値からアンチチートの上限を組み立てる。
func profileLimits(cfg *config.Config) profile.Limits {
	return profile.Limits{
		MaxGroDelta:   cfg.MaxGroDelta,
		MaxXPDelta:    cfg.MaxXPDelta,
		MaxInitialGro: cfg.MaxInitialGro,
		MaxInitialXP:  cfg.MaxInitialXP,
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. メトリクス
	reg, collector := newRegistry()

	// 3. トークン検証器（JWKSキャッシュ + SSRF対策済みクライアント）
	cache, closeCache, err := newKeySetCache(context.Background(), cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to set up JWKS cache: %w", err)
	}
	defer closeCache()

	verifier, err := newVerifier(cfg, cache, collector)
	if err != nil {
		return err
	}

	// 4. リポジトリとドメインサービスの初期化
	profileRepo := repository.NewPostgresProfileRepo(db)
	profileService := profile.NewService(profileRepo, security.NewTextSanitizer(), collector, profileLimits(cfg))

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(cfg.RateLimitSync))
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Verifier:          verifier,
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(reg),
		ProfileService:    profileService,
		DB:                db,
	})

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、購読失効ジョブを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	// ワーカーは/metricsを公開しないため、ランタイムメトリクスのみのレジストリで計測する
	_, collector := newRegistry()
	job := expiry.NewExpiryJob(db, slog.Default(), collector)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("worker starting",
		slog.Duration("expiry_interval", cfg.ExpiryInterval),
	)

	// コンテキストがキャンセルされるまでブロックする
	job.Start(ctx, cfg.ExpiryInterval)

	slog.Info("worker stopped gracefully")
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
		slog.Uint64("version", uint64(version)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(url string) error {
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
