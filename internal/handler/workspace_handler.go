package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/clinicblog/internal/admin"
	"github.com/clinicblog/internal/editor"
	"github.com/clinicblog/internal/media"
	"github.com/clinicblog/internal/service"
)

func (a *API) workspace(c *gin.Context) *admin.Workspace {
	return a.workspaces.For(currentUserID(c))
}

func respondWorkspace(c *gin.Context, ws *admin.Workspace) {
	c.JSON(http.StatusOK, gin.H{"workspace": ws.Snapshot()})
}

// GetWorkspace 刷新文章缓存并返回后台工作区快照
func (a *API) GetWorkspace(c *gin.Context) {
	ws := a.workspace(c)
	if err := ws.Refresh(c.Request.Context()); err != nil && !errors.Is(err, admin.ErrBusy) {
		a.respondFailure(c, err)
		return
	}
	respondWorkspace(c, ws)
}

type tabRequest struct {
	Tab string `json:"tab"`
}

func (a *API) SetTab(c *gin.Context) {
	var req tabRequest
	if !bindJSON(c, &req, "Requisição inválida.") {
		return
	}
	ws := a.workspace(c)
	if err := ws.SetTab(service.ParseTab(req.Tab)); err != nil {
		a.respondFailure(c, err)
		return
	}
	respondWorkspace(c, ws)
}

type selectRequest struct {
	IDs      []string `json:"ids"`
	All      bool     `json:"all"`
	Selected bool     `json:"selected"`
}

func (a *API) Select(c *gin.Context) {
	var req selectRequest
	if !bindJSON(c, &req, "Requisição inválida.") {
		return
	}
	ws := a.workspace(c)
	var err error
	if req.All {
		err = ws.SelectAll(req.Selected)
	} else {
		err = ws.Select(req.IDs, req.Selected)
	}
	if err != nil {
		a.respondFailure(c, err)
		return
	}
	respondWorkspace(c, ws)
}

func (a *API) NewPostForm(c *gin.Context) {
	ws := a.workspace(c)
	if err := ws.NewPost(); err != nil {
		a.respondFailure(c, err)
		return
	}
	respondWorkspace(c, ws)
}

func (a *API) EditPostForm(c *gin.Context) {
	ws := a.workspace(c)
	if err := ws.EditPost(c.Request.Context(), c.Param("id")); err != nil {
		a.respondFailure(c, err)
		return
	}
	respondWorkspace(c, ws)
}

type formRequest struct {
	Title         *string `json:"title"`
	Summary       *string `json:"summary"`
	FeaturedImage *string `json:"featuredImage"`
	Content       *string `json:"content"`
}

// UpdateForm 更新表单字段，未提供的字段保持不变
func (a *API) UpdateForm(c *gin.Context) {
	var req formRequest
	if !bindJSON(c, &req, "Requisição inválida.") {
		return
	}
	ws := a.workspace(c)
	err := ws.UpdateForm(admin.FormInput{
		Title:         req.Title,
		Summary:       req.Summary,
		FeaturedImage: req.FeaturedImage,
		Content:       req.Content,
	})
	if err != nil {
		a.respondFailure(c, err)
		return
	}
	respondWorkspace(c, ws)
}

// SetFeaturedFile stages the multipart "image" field; it is uploaded on save.
func (a *API) SetFeaturedFile(c *gin.Context) {
	file, err := formFile(c, "image")
	if err != nil {
		a.respondFailure(c, err)
		return
	}
	if file == nil {
		respondError(c, http.StatusBadRequest, "Selecione uma imagem.")
		return
	}
	ws := a.workspace(c)
	if err := ws.SetFeaturedFile(*file); err != nil {
		a.respondFailure(c, err)
		return
	}
	respondWorkspace(c, ws)
}

func (a *API) ClearFeaturedImage(c *gin.Context) {
	ws := a.workspace(c)
	if err := ws.ClearFeaturedImage(); err != nil {
		a.respondFailure(c, err)
		return
	}
	respondWorkspace(c, ws)
}

func (a *API) CancelForm(c *gin.Context) {
	ws := a.workspace(c)
	if err := ws.CancelForm(); err != nil {
		a.respondFailure(c, err)
		return
	}
	respondWorkspace(c, ws)
}

type selectionRequest struct {
	Index  int `json:"index"`
	Length int `json:"length"`
}

func (a *API) SetSelection(c *gin.Context) {
	var req selectionRequest
	if !bindJSON(c, &req, "Requisição inválida.") {
		return
	}
	ws := a.workspace(c)
	if err := ws.SetSelection(req.Index, req.Length); err != nil {
		a.respondFailure(c, err)
		return
	}
	respondWorkspace(c, ws)
}

type modalOpenRequest struct {
	Kind string `json:"kind"`
}

func (a *API) OpenModal(c *gin.Context) {
	var req modalOpenRequest
	if !bindJSON(c, &req, "Requisição inválida.") {
		return
	}
	ws := a.workspace(c)
	if err := ws.OpenModal(editor.Kind(strings.ToLower(strings.TrimSpace(req.Kind)))); err != nil {
		a.respondFailure(c, err)
		return
	}
	respondWorkspace(c, ws)
}

type modalSourceRequest struct {
	SourceType string `json:"sourceType"`
}

func (a *API) SetModalSource(c *gin.Context) {
	var req modalSourceRequest
	if !bindJSON(c, &req, "Requisição inválida.") {
		return
	}
	ws := a.workspace(c)
	if err := ws.SetModalSource(editor.SourceType(req.SourceType)); err != nil {
		a.respondFailure(c, err)
		return
	}
	respondWorkspace(c, ws)
}

var modalFieldKeys = []string{
	editor.FieldURL,
	editor.FieldAlt,
	editor.FieldCaption,
	editor.FieldSource,
	editor.FieldLabel,
	editor.FieldLink,
}

type modalSubmitRequest struct {
	Fields map[string]string `json:"fields"`
}

// SubmitModal accepts either JSON fields or a multipart form carrying the
// fields and an optional "file". Validation failures answer 400 with the
// modal errors and leave the modal open.
func (a *API) SubmitModal(c *gin.Context) {
	fields := map[string]string{}
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		for _, key := range modalFieldKeys {
			if value, ok := c.GetPostForm(key); ok {
				fields[key] = value
			}
		}
	} else if c.Request.ContentLength != 0 {
		var req modalSubmitRequest
		if !bindJSON(c, &req, "Requisição inválida.") {
			return
		}
		for key, value := range req.Fields {
			fields[key] = value
		}
	}

	ws := a.workspace(c)
	file, err := formFileIfMultipart(c, editor.FieldFile)
	if err != nil {
		a.respondFailure(c, err)
		return
	}
	if err := ws.FillModal(fields, file); err != nil {
		a.respondFailure(c, err)
		return
	}
	if err := ws.SubmitModal(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, editor.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		if status == http.StatusBadRequest || errors.Is(err, editor.ErrInsertFailed) {
			view := ws.Snapshot()
			c.JSON(status, gin.H{"error": "Verifique os campos destacados.", "errors": view.Modal.Errors, "workspace": view})
			return
		}
		a.respondFailure(c, err)
		return
	}
	respondWorkspace(c, ws)
}

func formFileIfMultipart(c *gin.Context, field string) (*media.File, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return nil, nil
	}
	return formFile(c, field)
}

func (a *API) CancelModal(c *gin.Context) {
	ws := a.workspace(c)
	if err := ws.CancelModal(); err != nil {
		a.respondFailure(c, err)
		return
	}
	respondWorkspace(c, ws)
}
