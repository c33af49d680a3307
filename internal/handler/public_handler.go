package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/clinicblog/internal/content"
	"github.com/clinicblog/internal/service"
)

const (
	defaultListLimit = 20
	liveWriteTimeout = 10 * time.Second
	livePingInterval = 30 * time.Second
)

// ListPosts 返回已发布文章列表
func (a *API) ListPosts(c *gin.Context) {
	cards, err := a.render.Published(c.Request.Context(), parseLimit(c, defaultListLimit))
	if err != nil {
		a.respondFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": cards})
}

// ShowPost 返回渲染后的文章与目录
func (a *API) ShowPost(c *gin.Context) {
	view, err := a.render.Post(c.Request.Context(), c.Param("slugId"))
	if err != nil {
		a.respondFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (a *API) RelatedPosts(c *gin.Context) {
	cards, err := a.render.Related(c.Request.Context(), c.Param("slugId"))
	if err != nil {
		a.respondFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": cards})
}

func (a *API) ListComments(c *gin.Context) {
	threads, err := a.comments.Threads(c.Request.Context(), content.ExtractIDFromSlugID(c.Param("slugId")))
	if err != nil {
		a.respondFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": threads, "count": service.CountThreads(threads)})
}

type commentRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Message  string `json:"message"`
	ParentID string `json:"parentId"`
}

// CreateComment 提交访客评论
func (a *API) CreateComment(c *gin.Context) {
	var req commentRequest
	if !bindJSON(c, &req, "Requisição inválida.") {
		return
	}
	view, err := a.comments.Submit(c.Request.Context(), content.ExtractIDFromSlugID(c.Param("slugId")), service.CommentInput{
		Name:     req.Name,
		Email:    req.Email,
		Message:  req.Message,
		ParentID: req.ParentID,
	})
	if err != nil {
		a.respondFailure(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"comment": view})
}

type liveFrame struct {
	Comments []service.CommentView `json:"comments"`
	Count    int                   `json:"count"`
}

// LiveComments upgrades to a websocket and pushes the full thread list each
// time the comments of the post change.
func (a *API) LiveComments(c *gin.Context) {
	postID := content.ExtractIDFromSlugID(c.Param("slugId"))
	if _, err := a.render.Post(c.Request.Context(), c.Param("slugId")); err != nil {
		a.respondFailure(c, err)
		return
	}

	conn, err := a.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		a.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// the client never sends anything; reading detects the close
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	feed, err := a.comments.Watch(ctx, postID)
	if err != nil {
		a.logger.Warn("watch comments failed", "post", postID, "error", err)
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, ""))
		return
	}

	ticker := time.NewTicker(livePingInterval)
	defer ticker.Stop()

	for {
		select {
		case threads, ok := <-feed:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
			if err := conn.WriteJSON(liveFrame{Comments: threads, Count: service.CountThreads(threads)}); err != nil {
				a.logger.Debug("live comments write failed", "post", postID, "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteTimeout)); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
