package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/clinicblog/internal/admin"
	"github.com/clinicblog/internal/service"
)

// Services are the dependencies shared by every handler.
type Services struct {
	Posts      *service.PostService
	Comments   *service.CommentService
	Render     *service.RenderService
	Auth       *service.AuthService
	Workspaces *admin.Manager
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	posts      *service.PostService
	comments   *service.CommentService
	render     *service.RenderService
	auth       *service.AuthService
	workspaces *admin.Manager
	logger     *slog.Logger
	upgrader   websocket.Upgrader
}

// NewAPI constructs a handler set with shared services. allowOrigin decides
// which pages may open the live comment socket; nil accepts same-origin only.
func NewAPI(s Services, logger *slog.Logger, allowOrigin func(r *http.Request) bool) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		posts:      s.Posts,
		comments:   s.Comments,
		render:     s.Render,
		auth:       s.Auth,
		workspaces: s.Workspaces,
		logger:     logger.With("component", "http"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1 << 10,
			WriteBufferSize: 1 << 12,
			CheckOrigin:     allowOrigin,
		},
	}
}
