package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/corisec/cori/internal/approval"
	"github.com/corisec/cori/internal/audit"
	"github.com/corisec/cori/internal/catalog"
	"github.com/corisec/cori/internal/config"
	"github.com/corisec/cori/internal/db"
	"github.com/corisec/cori/internal/pipeline"
	"github.com/corisec/cori/internal/policy"
	"github.com/corisec/cori/internal/token"
	"github.com/corisec/cori/internal/transport"
)

// exit codes, per spec.md §6.
const (
	exitOK             = 0
	exitConfigFailure  = 1
	exitStartupIOError = 2
	exitKeyMismatch    = 3
)

func main() {
	logger := mustBuildLogger(envOrDefault("CORI_LOG_LEVEL", "info"))
	defer logger.Sync() //nolint:errcheck // best-effort flush

	configDir := envOrDefault("CORI_CONFIG_DIR", "config")
	bundle, err := config.LoadBundle(configDir)
	if err != nil {
		logger.Error("failed to load configuration bundle", zap.String("dir", configDir), zap.Error(err))
		os.Exit(exitConfigFailure)
	}

	policyHandle, err := policy.NewHandle(bundle)
	if err != nil {
		logger.Error("failed to compile effective policy", zap.Error(err))
		os.Exit(exitConfigFailure)
	}

	publicKey, err := token.PublicKeyFromHex(os.Getenv("BISCUIT_PUBLIC_KEY"))
	if err != nil {
		logger.Error("failed to parse BISCUIT_PUBLIC_KEY", zap.Error(err))
		os.Exit(exitKeyMismatch)
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(exitConfigFailure)
	}

	maxConns := envOrDefaultInt("CORI_DB_MAX_CONNS", 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, databaseURL, maxConns)
	if err != nil {
		logger.Error("failed to connect to database", zap.Error(err))
		os.Exit(exitStartupIOError)
	}
	defer pool.Close()

	executor := db.NewExecutor(pool)
	approvalStore := approval.NewStore(pool)
	approvalTTL := time.Duration(envOrDefaultInt("CORI_APPROVAL_TTL_S", 900)) * time.Second
	approvalSvc := approval.NewService(approvalStore, newRequestID, time.Now, approvalTTL)

	// Audit — ClickHouse if configured, log fallback for local development.
	var auditWriter audit.Writer
	if dsn := os.Getenv("CLICKHOUSE_DSN"); dsn != "" {
		chWriter, err := audit.NewClickHouseWriter(dsn, logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log writer", zap.Error(err))
			auditWriter = audit.NewLogWriter(logger)
		} else {
			auditWriter = chWriter
			logger.Info("clickhouse audit writer connected")
		}
	} else {
		auditWriter = audit.NewLogWriter(logger)
		logger.Info("no CLICKHOUSE_DSN set, using log writer for audit events")
	}
	defer auditWriter.Close()

	catalogTTL := time.Duration(envOrDefaultInt("CORI_CATALOG_CACHE_TTL_S", 60)) * time.Second

	p := &pipeline.Pipeline{
		PublicKey:       publicKey,
		Policy:          policyHandle,
		Catalog:         catalog.NewCache(catalogTTL),
		Executor:        executor,
		Approval:        approvalSvc,
		Audit:           auditWriter,
		NewID:           newRequestID,
		Now:             time.Now,
		ApprovalTimeout: time.Duration(envOrDefaultInt("CORI_APPROVAL_AWAIT_TIMEOUT_S", 30)) * time.Second,
	}

	// Configuration reload is a process-wide event (spec.md §5): SIGHUP
	// recompiles the bundle in the background and swaps it in on success,
	// leaving the prior policy in effect on failure.
	go watchForReload(ctx, configDir, policyHandle, logger)

	httpAddr := ":" + envOrDefault("CORI_HTTP_PORT", "8443")
	httpServer := &http.Server{
		Addr:    httpAddr,
		Handler: transport.NewHTTPServer(p, logger),
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http transport listening", zap.String("addr", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// The stdio transport is opt-in: it serves exactly one principal for
	// the lifetime of the process, so it only starts when an operator has
	// actually supplied a credential for that principal.
	var stdioDone chan struct{}
	if stdioToken := os.Getenv("CORI_TOKEN"); stdioToken != "" {
		stdioDone = make(chan struct{})
		go func() {
			defer close(stdioDone)
			logger.Info("stdio transport serving")
			stdio := transport.NewStdioServer(p, logger, stdioToken)
			if err := stdio.Serve(ctx, os.Stdin, os.Stdout); err != nil {
				errCh <- fmt.Errorf("stdio server: %w", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("transport failed", zap.Error(err))
		cancel()
		os.Exit(exitStartupIOError)
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown did not complete cleanly", zap.Error(err))
	}
	if stdioDone != nil {
		<-stdioDone
	}
}

func newRequestID() string { return uuid.NewString() }

func watchForReload(ctx context.Context, configDir string, handle *policy.Handle, logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigCh:
			bundle, err := config.LoadBundle(configDir)
			if err != nil {
				logger.Error("configuration reload failed to load bundle, previous policy remains active", zap.Error(err))
				continue
			}
			if err := handle.Reload(bundle); err != nil {
				logger.Error("configuration reload failed to compile, previous policy remains active", zap.Error(err))
				continue
			}
			logger.Info("configuration reloaded")
		}
	}
}

func mustBuildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
