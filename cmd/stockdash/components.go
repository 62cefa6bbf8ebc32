package main

import (
	"fmt"

	"github.com/newthinker/stockdash/internal/backend"
	"github.com/newthinker/stockdash/internal/config"
	"github.com/newthinker/stockdash/internal/directory"
	"github.com/newthinker/stockdash/internal/identity"
	"github.com/newthinker/stockdash/internal/logger"
	"github.com/newthinker/stockdash/internal/metrics"
	"github.com/newthinker/stockdash/internal/quote"
	"github.com/newthinker/stockdash/internal/quote/yahoo"
	"github.com/newthinker/stockdash/internal/storage/archive"
	"github.com/newthinker/stockdash/internal/watchlist"
	"go.uber.org/zap"
)

// components is everything a command may need, built from one config.
type components struct {
	cfg      *config.Config
	log      *zap.Logger
	metrics  *metrics.Registry
	session  *identity.Session
	backend  *backend.Client
	manager  *watchlist.Manager
	exporter *archive.Exporter
}

func loadConfig(log *zap.Logger) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	if cfgFile == "" {
		log.Debug("no config file specified, using defaults")
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if userID != "" {
		cfg.Identity.UserID = userID
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func buildComponents(log *zap.Logger) (*components, error) {
	cfg, err := loadConfig(log)
	if err != nil {
		return nil, err
	}

	reg := metrics.NewRegistry()
	session := identity.NewSession(cfg.Identity.UserID)

	client := backend.New(cfg.Backend.BaseURL,
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithLogger(log.Named("backend")),
		backend.WithRecorder(reg),
	)

	prices, err := quote.Select(cfg.Price.Source, client, yahoo.New().WithTimeout(cfg.Price.Timeout))
	if err != nil {
		return nil, err
	}

	opts := []watchlist.Option{watchlist.WithRefreshConcurrency(cfg.Watchlist.RefreshConcurrency)}
	if cfg.Watchlist.ConfirmRemoval {
		opts = append(opts, watchlist.WithConfirmedRemoval())
	}
	manager := watchlist.New(watchlist.Deps{
		Prices:    prices,
		Store:     client,
		Directory: directory.NewLoader(cfg.Directory.Path, cfg.Directory.MarketKey, log.Named("directory")),
		Identity:  session,
		Logger:    log.Named("watchlist"),
		Metrics:   reg,
	}, opts...)

	store, err := openArchive(cfg.Archive)
	if err != nil {
		return nil, err
	}

	exporter := archive.NewExporter(store,
		archive.WithExportLogger(log.Named("archive")),
		archive.WithExportRecorder(reg),
	)

	return &components{
		cfg:      cfg,
		log:      log,
		metrics:  reg,
		session:  session,
		backend:  client,
		manager:  manager,
		exporter: exporter,
	}, nil
}

func openArchive(cfg config.ArchiveConfig) (archive.Storage, error) {
	switch cfg.Type {
	case "", "localfs":
		return archive.NewLocalFS(cfg.Path)
	case "s3":
		return archive.NewS3(archive.S3Config{
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown archive type: %s", cfg.Type)
	}
}

// withComponents handles common setup and teardown for one-shot commands.
func withComponents(fn func(c *components) error) error {
	log := logger.Must(debug)
	defer log.Sync()

	c, err := buildComponents(log)
	if err != nil {
		return err
	}
	defer c.manager.Close()

	return fn(c)
}
