package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/nanobanana/supermarket/internal/api"
	"github.com/nanobanana/supermarket/internal/config"
	"github.com/nanobanana/supermarket/internal/database"
	"github.com/nanobanana/supermarket/internal/gateway"
	"github.com/nanobanana/supermarket/internal/imagestore"
	"github.com/nanobanana/supermarket/internal/pipeline"
	"github.com/nanobanana/supermarket/internal/store"
	"github.com/nanobanana/supermarket/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	accounts, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer accounts.Close()

	var mirror *imagestore.Mirror
	if cfg.S3Enabled() {
		mirror, err = imagestore.NewMirror(imagestore.MirrorConfig{
			Endpoint:      cfg.S3Endpoint,
			Region:        cfg.S3Region,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Bucket:        cfg.S3Bucket,
			PublicBaseURL: cfg.S3PublicBaseURL,
			UsePathStyle:  cfg.S3UsePathStyle,
			Prefix:        cfg.S3Prefix,
		})
		if err != nil {
			log.Fatalf("image mirror: %v", err)
		}
	}

	images, err := imagestore.New(cfg.DataDir, logr, mirror)
	if err != nil {
		log.Fatalf("image store: %v", err)
	}

	gw := gateway.NewClient(gateway.Options{
		APIKey:  cfg.GenAPIKey,
		BaseURL: cfg.GenBaseURL,
		Model:   cfg.GenModel,
		Timeout: cfg.RequestTimeout,
	}, logr)

	pipe := pipeline.NewService(gw, images, cfg.WatermarkText, logr)

	server := api.NewServer(cfg, logr, accounts, images, pipe)
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("server stopped", "err", err)
	}
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	if cfg.StoreBackend == "mysql" {
		db, err := database.Connect(cfg.MySQLDSN)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		return store.NewSQLStore(db, cfg.InitialCredits), nil
	}
	return store.NewFileStore(cfg.DataDir, cfg.InitialCredits)
}
