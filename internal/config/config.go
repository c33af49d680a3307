package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	// .env files are optional; values already in the environment win.
	_ "github.com/joho/godotenv/autoload"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr    string
	Port          string
	DatabaseURL   string
	StoreBackend  string
	MongoURI      string
	MongoDatabase string
	SessionSecret string
	GinMode       string
	SiteBaseURL   string
	CORSOrigins   []string

	LogLevel  string
	LogFormat string

	StorageBackend string
	UploadDir      string
	UploadURLPath  string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioPublicURL string

	EditorButtonLabel string
	EditorButtonURL   string

	AdminEmail    string
	AdminPassword string
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
func Load() AppConfig {
	port := env("PORT", "8080")

	return AppConfig{
		ListenAddr:    env("LISTEN_ADDR", fmt.Sprintf(":%s", port)),
		Port:          port,
		DatabaseURL:   env("DATABASE_URL", "sqlite://clinicblog.db"),
		StoreBackend:  strings.ToLower(env("STORE_BACKEND", "gorm")),
		MongoURI:      env("MONGODB_URI", "mongodb://127.0.0.1:27017"),
		MongoDatabase: env("MONGODB_DATABASE", "clinicblog"),
		SessionSecret: env("SESSION_SECRET", "clinicblog-dev-secret"),
		GinMode:       env("GIN_MODE", "release"),
		SiteBaseURL:   strings.TrimRight(env("SITE_BASE_URL", "https://dralueinebarradas.com.br"), "/"),
		CORSOrigins:   splitList(env("CORS_ORIGINS", "")),

		LogLevel:  strings.ToLower(env("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(env("LOG_FORMAT", "text")),

		StorageBackend: strings.ToLower(env("STORAGE_BACKEND", "local")),
		UploadDir:      env("UPLOAD_DIR", "web/static/uploads"),
		UploadURLPath:  strings.TrimRight(env("UPLOAD_URL_PATH", "/static/uploads"), "/"),
		MinioEndpoint:  env("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: env("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: env("MINIO_SECRET_KEY", ""),
		MinioBucket:    env("MINIO_BUCKET", "clinicblog"),
		MinioUseSSL:    envBool("MINIO_USE_SSL", false),
		MinioPublicURL: strings.TrimRight(env("MINIO_PUBLIC_URL", ""), "/"),

		EditorButtonLabel: env("EDITOR_BUTTON_LABEL", "Agende sua consulta"),
		EditorButtonURL:   env("EDITOR_BUTTON_URL", "https://wa.me/5500000000000"),

		AdminEmail:    env("ADMIN_EMAIL", ""),
		AdminPassword: env("ADMIN_PASSWORD", ""),
	}
}

func env(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
