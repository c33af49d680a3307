package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	cli "github.com/urfave/cli/v2"

	"github.com/clinicblog/internal/app"
	"github.com/clinicblog/internal/config"
	"github.com/clinicblog/internal/db"
	"github.com/clinicblog/internal/logging"
)

func main() {
	cliApp := &cli.App{
		Name:  "clinicctl",
		Usage: "maintenance tasks for the clinic blog",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			initUserCmd,
			resanitizeCmd,
			importCmd,
		},
	}
	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withApp opens the configured backends for the duration of fn.
func withApp(cctx *cli.Context, fn func(ctx context.Context, a *app.App, logger *slog.Logger) error) error {
	cfg := config.Load()
	logger, err := logging.Setup(logging.Options{Level: cctx.String("log-level"), Format: "text", Output: os.Stderr})
	if err != nil {
		return err
	}
	ctx := cctx.Context
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	return fn(ctx, a, logger)
}

var initUserCmd = &cli.Command{
	Name:  "init-user",
	Usage: "create the admin account when it does not exist",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "email", EnvVars: []string{"ADMIN_EMAIL"}, Required: true},
		&cli.StringFlag{Name: "password", EnvVars: []string{"ADMIN_PASSWORD"}, Required: true},
	},
	Action: func(cctx *cli.Context) error {
		return withApp(cctx, func(ctx context.Context, a *app.App, logger *slog.Logger) error {
			created, err := db.EnsureUser(a.DB.WithContext(ctx), cctx.String("email"), cctx.String("password"))
			if err != nil {
				return fmt.Errorf("创建用户失败: %w", err)
			}
			if !created {
				fmt.Println("用户已存在，无需初始化")
				return nil
			}
			fmt.Printf("管理员用户创建成功: %s\n", strings.ToLower(strings.TrimSpace(cctx.String("email"))))
			return nil
		})
	},
}

var resanitizeCmd = &cli.Command{
	Name:  "resanitize",
	Usage: "run cleanup and the sanitizer over every stored post",
	Action: func(cctx *cli.Context) error {
		return withApp(cctx, func(ctx context.Context, a *app.App, logger *slog.Logger) error {
			changed, err := a.Posts.Resanitize(ctx)
			if err != nil {
				return err
			}
			logger.Info("resanitize finished", "changed", changed)
			return nil
		})
	},
}

var importCmd = &cli.Command{
	Name:      "import",
	Usage:     "import a markdown file as a post",
	ArgsUsage: "<file.md>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "author", Usage: "email of the author account", EnvVars: []string{"ADMIN_EMAIL"}, Required: true},
		&cli.StringFlag{Name: "title", Usage: "post title, defaults to the file name"},
		&cli.StringFlag{Name: "summary"},
		&cli.StringFlag{Name: "featured-image", Usage: "http(s) url of the featured image"},
		&cli.BoolFlag{Name: "publish", Usage: "publish instead of saving a draft"},
	},
	Action: func(cctx *cli.Context) error {
		path := cctx.Args().First()
		if path == "" {
			return fmt.Errorf("must specify a markdown file")
		}
		markdown, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		title := cctx.String("title")
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		status := db.StatusDraft
		if cctx.Bool("publish") {
			status = db.StatusPublished
		}

		return withApp(cctx, func(ctx context.Context, a *app.App, logger *slog.Logger) error {
			var author db.User
			email := strings.ToLower(strings.TrimSpace(cctx.String("author")))
			if err := a.DB.WithContext(ctx).Where("email = ?", email).First(&author).Error; err != nil {
				return fmt.Errorf("author %s: %w", email, err)
			}

			result, err := a.Posts.ImportMarkdown(ctx, author.ID, status, title, cctx.String("summary"), string(markdown), cctx.String("featured-image"))
			if err != nil {
				return err
			}
			logger.Info("post imported", "id", result.ID, "status", result.Status)
			fmt.Println(result.ID)
			return nil
		})
	},
}
