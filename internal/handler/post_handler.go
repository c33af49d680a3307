package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/clinicblog/internal/admin"
	"github.com/clinicblog/internal/service"
)

type saveRequest struct {
	Status string `json:"status"`
}

// SavePost 保存编辑中的文章；失败时表单保持不变
func (a *API) SavePost(c *gin.Context) {
	var req saveRequest
	if !bindJSON(c, &req, "Requisição inválida.") {
		return
	}
	ws := a.workspace(c)
	result, err := ws.Save(c.Request.Context(), req.Status)
	if err != nil {
		a.respondFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":            result.ID,
		"status":        result.Status,
		"featuredImage": result.FeaturedImage,
		"inlineUploads": result.InlineUploads,
		"workspace":     ws.Snapshot(),
	})
}

type confirmRequest struct {
	Confirm bool `json:"confirm"`
}

// confirmation reads the confirm flag from the JSON body or the query.
func confirmation(c *gin.Context) admin.Confirmer {
	if ok, err := strconv.ParseBool(c.Query("confirm")); err == nil {
		return admin.Confirmed(ok)
	}
	var req confirmRequest
	if c.Request.ContentLength != 0 {
		_ = c.ShouldBindJSON(&req)
	}
	return admin.Confirmed(req.Confirm)
}

// PublishDraft answers 422 with the missing fields when the draft cannot be
// published; the draft is then open in the workspace form.
func (a *API) PublishDraft(c *gin.Context) {
	ws := a.workspace(c)
	err := ws.PublishDraft(c.Request.Context(), c.Param("id"), confirmation(c))
	var blocked *service.PublishBlockedError
	if errors.As(err, &blocked) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":     "Complete os campos obrigatórios antes de publicar.",
			"missing":   blocked.Missing,
			"workspace": ws.Snapshot(),
		})
		return
	}
	if err != nil {
		a.respondFailure(c, err)
		return
	}
	respondWorkspace(c, ws)
}

func (a *API) BulkPublish(c *gin.Context) {
	ws := a.workspace(c)
	result, err := ws.BulkPublish(c.Request.Context(), confirmation(c))
	if err != nil {
		a.respondFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"published":      result.Published,
		"skippedInvalid": result.SkippedInvalid,
		"workspace":      ws.Snapshot(),
	})
}

func (a *API) DeletePost(c *gin.Context) {
	ws := a.workspace(c)
	if err := ws.Delete(c.Request.Context(), c.Param("id"), confirmation(c)); err != nil {
		a.respondFailure(c, err)
		return
	}
	respondWorkspace(c, ws)
}

// BulkDelete stops at the first failure and reports how many posts were
// removed before it.
func (a *API) BulkDelete(c *gin.Context) {
	ws := a.workspace(c)
	deleted, err := ws.BulkDelete(c.Request.Context(), confirmation(c))
	if err != nil {
		if deleted > 0 {
			c.Header("X-Deleted-Count", strconv.Itoa(deleted))
		}
		a.respondFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted, "workspace": ws.Snapshot()})
}

type importRequest struct {
	Title         string `json:"title"`
	Summary       string `json:"summary"`
	Markdown      string `json:"markdown"`
	FeaturedImage string `json:"featuredImage"`
	Status        string `json:"status"`
}

// ImportMarkdown 将 Markdown 转换为富文本并保存为新文章
func (a *API) ImportMarkdown(c *gin.Context) {
	var req importRequest
	if !bindJSON(c, &req, "Requisição inválida.") {
		return
	}
	ctx := c.Request.Context()
	result, err := a.posts.ImportMarkdown(ctx, currentUserID(c), req.Status, req.Title, req.Summary, req.Markdown, req.FeaturedImage)
	if err != nil {
		a.respondFailure(c, err)
		return
	}

	ws := a.workspace(c)
	if err := ws.Refresh(ctx); err != nil && !errors.Is(err, admin.ErrBusy) {
		a.logger.Warn("refresh after import failed", "error", err)
	}
	c.JSON(http.StatusCreated, gin.H{"id": result.ID, "status": result.Status, "workspace": ws.Snapshot()})
}
