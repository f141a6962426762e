package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/vbonduro/renobudget/internal/assistant"
	claudeassistant "github.com/vbonduro/renobudget/internal/assistant/claude"
	ollamaassistant "github.com/vbonduro/renobudget/internal/assistant/ollama"
	"github.com/vbonduro/renobudget/internal/blobstore"
	"github.com/vbonduro/renobudget/internal/blobstore/memory"
	"github.com/vbonduro/renobudget/internal/blobstore/postgres"
	s3store "github.com/vbonduro/renobudget/internal/blobstore/s3"
	"github.com/vbonduro/renobudget/internal/catalog"
	"github.com/vbonduro/renobudget/internal/chat"
	"github.com/vbonduro/renobudget/internal/config"
	"github.com/vbonduro/renobudget/internal/db"
	"github.com/vbonduro/renobudget/internal/diag"
	"github.com/vbonduro/renobudget/internal/imagestore/local"
	"github.com/vbonduro/renobudget/internal/logging"
	"github.com/vbonduro/renobudget/internal/mirror"
	"github.com/vbonduro/renobudget/internal/persistence"
	"github.com/vbonduro/renobudget/internal/service"
	"github.com/vbonduro/renobudget/internal/store"
	"github.com/vbonduro/renobudget/internal/validation"
	"github.com/vbonduro/renobudget/internal/web"
)

func main() {
	var envFile, listen string
	flags := pflag.NewFlagSet("renobudget", pflag.ContinueOnError)
	flags.StringVar(&envFile, "env-file", getenvDefault("ENV_FILE", ".env"), "path to a .env file (missing file is ignored)")
	flags.StringVar(&listen, "listen", "", "listen address, overrides LISTEN_ADDR")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("failed to parse flags: %v", err)
	}

	if err := config.LoadEnvFile(envFile); err != nil {
		log.Fatalf("failed to load env file: %v", err)
	}
	cfg := config.Load()
	if listen != "" {
		cfg.ListenAddr = listen
	}

	logger, cleanup, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer closeWithLog(database, "database", logger)

	blobs, err := newBlobStore(ctx, cfg, database, logger)
	if err != nil {
		return err
	}
	if c, ok := blobs.(io.Closer); ok {
		defer closeWithLog(c, "blob store", logger)
	}

	rooms := catalog.Default()
	if cfg.RoomCatalog != "" {
		if rooms, err = catalog.Load(cfg.RoomCatalog); err != nil {
			return err
		}
	}

	gen, err := newGenerator(cfg, logger)
	if err != nil {
		return err
	}

	images, err := local.NewLocalImageStore(cfg.ImagePath)
	if err != nil {
		return fmt.Errorf("failed to initialize image store: %w", err)
	}

	mirrorClient := mirror.New(cfg.MirrorLogURL, cfg.MirrorImageURL, cfg.MirrorTimeout, logger)
	adapter := persistence.New(blobs, mirrorClient, persistence.NewSampleSource(cfg.SampleSource, cfg.MirrorTimeout), logger)
	chatClient := chat.New(gen, adapter, chat.Config{Timeout: cfg.ChatTimeout, RatePerSecond: cfg.ChatRatePerSec}, logger)
	recorder := diag.New(store.NewDiagnosticStore(database), mirrorClient, logger)

	svc := service.NewRenovationService(validation.New(rooms), adapter, chatClient, recorder, logger)
	svc.SetMaxImageBytes(cfg.MaxImageBytes)
	if err := svc.Hydrate(ctx); err != nil {
		return fmt.Errorf("failed to restore rooms: %w", err)
	}

	server := web.NewServer(svc, images, logger)
	return server.ListenAndServe(ctx, cfg.ListenAddr)
}

func newBlobStore(ctx context.Context, cfg *config.Config, database *sql.DB, logger *slog.Logger) (blobstore.Store, error) {
	switch blobstore.Driver(cfg.StoreDriver) {
	case blobstore.DriverMemory:
		logger.Warn("using in-memory snapshot store; data is lost on restart")
		return memory.New(), nil
	case blobstore.DriverS3:
		if cfg.S3Bucket == "" {
			return nil, errors.New("S3_BUCKET is required when STORE_DRIVER=s3")
		}
		logger.Info("using S3 snapshot store", "bucket", cfg.S3Bucket, "region", cfg.S3Region)
		return s3store.New(ctx, s3store.Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	case blobstore.DriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("POSTGRES_DSN is required when STORE_DRIVER=postgres")
		}
		logger.Info("using postgres snapshot store")
		return postgres.Open(ctx, cfg.PostgresDSN)
	case blobstore.DriverSQLite:
		logger.Info("using sqlite snapshot store", "path", cfg.DBPath)
		return store.NewSnapshotStore(database), nil
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

func newGenerator(cfg *config.Config, logger *slog.Logger) (assistant.Generator, error) {
	switch cfg.ChatBackend {
	case "claude":
		if cfg.ClaudeAPIKey == "" {
			return nil, errors.New("CLAUDE_API_KEY is required when CHAT_BACKEND=claude")
		}
		logger.Info("using Claude chat backend", "model", cfg.ClaudeModel)
		return claudeassistant.NewGenerator(cfg.ClaudeAPIKey, cfg.ClaudeModel), nil
	default:
		logger.Info("using Ollama chat backend", "host", cfg.OllamaHost, "model", cfg.OllamaModel)
		return ollamaassistant.NewGenerator(cfg.OllamaHost, cfg.OllamaModel), nil
	}
}

func getenvDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
