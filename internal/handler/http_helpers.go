package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/clinicblog/internal/admin"
	"github.com/clinicblog/internal/editor"
	"github.com/clinicblog/internal/media"
	"github.com/clinicblog/internal/service"
)

// maxUploadBytes bounds how much of a multipart file is read into memory.
// Limits per kind are enforced by the media gateway.
const maxUploadBytes = service.MaxInlineVideoBytes + 1<<20

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

// respondFailure maps service errors to HTTP responses.
func (a *API) respondFailure(c *gin.Context, err error) {
	var (
		validation *service.ValidationError
		upload     *media.UploadError
		persist    *service.PersistenceError
		blocked    *service.PublishBlockedError
	)
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Message, "field": validation.Field})
	case errors.As(err, &blocked):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Complete os campos obrigatórios antes de publicar.", "missing": blocked.Missing})
	case errors.As(err, &upload):
		_ = c.Error(err)
		respondError(c, http.StatusBadGateway, "Falha ao enviar o arquivo. Tente novamente.")
	case errors.Is(err, service.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, "Email ou senha inválidos.")
	case errors.Is(err, service.ErrPostNotFound), errors.Is(err, service.ErrUserNotFound):
		respondError(c, http.StatusNotFound, "Não encontrado.")
	case errors.Is(err, service.ErrInvalidResetToken):
		respondError(c, http.StatusBadRequest, "Link de redefinição inválido ou expirado.")
	case errors.Is(err, service.ErrNothingToPublish):
		respondError(c, http.StatusBadRequest, "Nenhum rascunho válido para publicar.")
	case errors.Is(err, admin.ErrBusy):
		respondError(c, http.StatusConflict, "Aguarde a operação em andamento.")
	case errors.Is(err, admin.ErrNoForm):
		respondError(c, http.StatusConflict, "Nenhum post aberto no editor.")
	case errors.Is(err, admin.ErrNotConfirmed):
		respondError(c, http.StatusPreconditionFailed, "Confirme a ação para continuar.")
	case errors.Is(err, admin.ErrNoSelection):
		respondError(c, http.StatusBadRequest, "Selecione ao menos um post.")
	case errors.Is(err, editor.ErrModalClosed),
		errors.Is(err, editor.ErrUnknownKind),
		errors.Is(err, editor.ErrUnknownSource),
		errors.Is(err, editor.ErrInvalidInput):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.As(err, &persist):
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "Erro ao acessar os dados. Tente novamente.")
	default:
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "Erro inesperado.")
	}
}

// formFile reads an optional multipart file. A missing field yields nil.
func formFile(c *gin.Context, field string) (*media.File, error) {
	header, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", field, err)
	}
	file, err := readPart(header)
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func readPart(header *multipart.FileHeader) (media.File, error) {
	if header.Size > maxUploadBytes {
		return media.File{}, &service.ValidationError{Field: "file", Message: "O arquivo é grande demais."}
	}
	src, err := header.Open()
	if err != nil {
		return media.File{}, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxUploadBytes+1))
	if err != nil {
		return media.File{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxUploadBytes {
		return media.File{}, &service.ValidationError{Field: "file", Message: "O arquivo é grande demais."}
	}
	return media.NewFile(header.Filename, header.Header.Get("Content-Type"), data), nil
}

func parseLimit(c *gin.Context, fallback int) int {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return fallback
	}
	return limit
}
