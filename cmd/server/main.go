package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clinicblog/internal/admin"
	"github.com/clinicblog/internal/app"
	"github.com/clinicblog/internal/config"
	"github.com/clinicblog/internal/db"
	"github.com/clinicblog/internal/editor"
	"github.com/clinicblog/internal/handler"
	"github.com/clinicblog/internal/logging"
	"github.com/clinicblog/internal/router"
)

func main() {
	cfg := config.Load()

	logger, err := logging.Setup(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 初始化数据库与存储
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize backends", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			logger.Warn("close backends", "error", err)
		}
	}()

	if created, err := db.EnsureUser(a.DB, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		logger.Error("failed to ensure admin user", "error", err)
		os.Exit(1)
	} else if created {
		logger.Info("admin user created", "email", cfg.AdminEmail)
	}

	registry := editor.NewRegistry()
	if err := registry.Initialize(); err != nil {
		logger.Error("failed to register editor formats", "error", err)
		os.Exit(1)
	}

	defaults := editor.ButtonDefaults{Label: cfg.EditorButtonLabel, URL: cfg.EditorButtonURL}
	api := handler.NewAPI(handler.Services{
		Posts:      a.Posts,
		Comments:   a.Comments,
		Render:     a.Render,
		Auth:       a.Auth,
		Workspaces: admin.NewManager(a.Posts, registry, defaults, logger),
	}, logger, router.AllowOrigin(cfg.CORSOrigins))

	uploadDir, uploadURL := a.LocalUploads()
	r := router.SetupRouter(router.Config{
		SessionSecret: cfg.SessionSecret,
		UploadDir:     uploadDir,
		UploadURLPath: uploadURL,
		CORSOrigins:   cfg.CORSOrigins,
		SecureCookies: strings.HasPrefix(cfg.SiteBaseURL, "https://"),
	}, api, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()

	logger.Info("server listening", "addr", cfg.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("failed to run server", "error", err)
		os.Exit(1)
	}
}
