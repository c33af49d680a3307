package app

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/clinicblog/internal/config"
	"github.com/clinicblog/internal/db"
	"github.com/clinicblog/internal/logging"
	"github.com/clinicblog/internal/media"
	"github.com/clinicblog/internal/service"
	"github.com/clinicblog/internal/store"
	"github.com/clinicblog/internal/store/gormstore"
	"github.com/clinicblog/internal/store/mongostore"
)

// App wires the configured backends into the services.
type App struct {
	Config  config.AppConfig
	DB      *gorm.DB
	Store   store.Store
	Storage media.Storage
	Gateway *media.Gateway

	Posts    *service.PostService
	Comments *service.CommentService
	Render   *service.RenderService
	Auth     *service.AuthService

	closers []func(context.Context) error
}

// New opens the database, the document store and the object storage
// selected by cfg.
func New(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) (*App, error) {
	gdb, err := db.Open(cfg.DatabaseURL, logging.GormLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a := &App{Config: cfg, DB: gdb}

	switch cfg.StoreBackend {
	case "", "gorm":
		a.Store = gormstore.New(gdb)
	case "mongo", "mongodb":
		ms, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("connect mongodb: %w", err)
		}
		if err := ms.EnsureIndexes(ctx); err != nil {
			_ = ms.Close(ctx)
			return nil, fmt.Errorf("ensure mongodb indexes: %w", err)
		}
		a.Store = ms
		a.closers = append(a.closers, ms.Close)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	switch cfg.StorageBackend {
	case "", "local":
		a.Storage = media.NewLocalStorage(cfg.UploadDir, cfg.UploadURLPath, cfg.SiteBaseURL)
	case "minio", "s3":
		client, err := media.NewMinioClient(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
		if err != nil {
			return nil, fmt.Errorf("create minio client: %w", err)
		}
		storage := media.NewMinioStorage(client, cfg.MinioBucket, cfg.MinioPublicURL)
		if err := storage.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure bucket %s: %w", cfg.MinioBucket, err)
		}
		a.Storage = storage
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	a.Gateway = media.NewGateway(a.Storage, logger)
	a.Posts = service.NewPostService(a.Store, a.Gateway, logger)
	a.Comments = service.NewCommentService(a.Store, logger)
	a.Render = service.NewRenderService(a.Store, logger)
	a.Auth = service.NewAuthService(gdb, a.Gateway, logger)

	logger.Info("backends ready", "store", cfg.StoreBackend, "storage", cfg.StorageBackend)
	return a, nil
}

// LocalUploads returns the directory and URL path to serve when uploads are
// kept on local disk.
func (a *App) LocalUploads() (dir, urlPath string) {
	if local, ok := a.Storage.(*media.LocalStorage); ok {
		return local.Dir(), local.URLPath()
	}
	return "", ""
}

func (a *App) Close(ctx context.Context) error {
	var firstErr error
	for _, closeFn := range a.closers {
		if err := closeFn(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
