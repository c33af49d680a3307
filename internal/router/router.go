package router

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clinicblog/internal/handler"
	"github.com/clinicblog/internal/logging"
)

const sessionName = "clinicblog_session"

// Config 汇总构建路由所需的参数
type Config struct {
	SessionSecret string
	// UploadDir is served under UploadURLPath when set (local storage).
	UploadDir     string
	UploadURLPath string
	CORSOrigins   []string
	SecureCookies bool
}

// AllowOrigin builds the websocket origin check from the CORS list. Requests
// without an Origin header and same-host requests are accepted.
func AllowOrigin(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, origin := range origins {
		allowed[strings.TrimRight(origin, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowed["*"] || allowed[origin] {
			return true
		}
		parsed, err := url.Parse(origin)
		return err == nil && parsed.Host == r.Host
	}
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(cfg Config, api *handler.API, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.GinMiddleware(logger))

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Requested-With"},
			ExposeHeaders:    []string{"Content-Length", "X-Deleted-Count"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// 配置会话中间件
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 3600,
		HttpOnly: true,
		Secure:   cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	if cfg.UploadDir != "" && cfg.UploadURLPath != "" {
		r.Static(cfg.UploadURLPath, cfg.UploadDir)
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	public := r.Group("/api")
	{
		public.GET("/posts", api.ListPosts)
		public.GET("/posts/:slugId", api.ShowPost)
		public.GET("/posts/:slugId/related", api.RelatedPosts)
		public.GET("/posts/:slugId/comments", api.ListComments)
		public.POST("/posts/:slugId/comments", api.CreateComment)
		public.GET("/posts/:slugId/comments/live", api.LiveComments)
	}

	// 后台管理路由
	adminGroup := r.Group("/admin")
	{
		adminGroup.POST("/login", api.Login)
		adminGroup.POST("/logout", api.Logout)
		adminGroup.POST("/password-reset", api.RequestPasswordReset)
		adminGroup.POST("/password-reset/confirm", api.ConfirmPasswordReset)

		// 需要认证的后台路由
		auth := adminGroup.Group("/api")
		auth.Use(handler.AuthRequired())
		{
			auth.GET("/workspace", api.GetWorkspace)
			auth.POST("/workspace/tab", api.SetTab)
			auth.POST("/workspace/select", api.Select)

			auth.POST("/form/new", api.NewPostForm)
			auth.POST("/form/edit/:id", api.EditPostForm)
			auth.PUT("/form", api.UpdateForm)
			auth.POST("/form/featured", api.SetFeaturedFile)
			auth.DELETE("/form/featured", api.ClearFeaturedImage)
			auth.POST("/form/cancel", api.CancelForm)

			auth.POST("/editor/modal/open", api.OpenModal)
			auth.POST("/editor/modal/source", api.SetModalSource)
			auth.POST("/editor/modal/submit", api.SubmitModal)
			auth.POST("/editor/modal/cancel", api.CancelModal)
			auth.POST("/editor/selection", api.SetSelection)

			auth.POST("/posts/save", api.SavePost)
			auth.POST("/posts/:id/publish", api.PublishDraft)
			auth.POST("/posts/bulk-publish", api.BulkPublish)
			auth.DELETE("/posts/:id", api.DeletePost)
			auth.POST("/posts/bulk-delete", api.BulkDelete)
			auth.POST("/posts/import", api.ImportMarkdown)

			auth.GET("/profile", api.GetProfile)
			auth.PUT("/profile", api.UpdateProfile)
			auth.POST("/profile/avatar", api.UploadAvatar)
		}
	}

	return r
}
