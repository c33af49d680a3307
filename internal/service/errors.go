package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/clinicblog/internal/media"
	"github.com/clinicblog/internal/store"
)

var (
	ErrPostNotFound       = errors.New("post not found")
	ErrNothingToPublish   = errors.New("no valid drafts to publish")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
	ErrUserNotFound       = errors.New("user not found")
)

// ErrNothingToSave 在表单所有字段均为空时返回
var ErrNothingToSave = &ValidationError{Field: "form", Message: "Preencha ao menos um campo antes de salvar."}

// ValidationError reports user input that failed a precondition. Field is the
// form key the message belongs to.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// PersistenceError wraps a document store failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// persistence wraps err, mapping a missing document to ErrPostNotFound.
func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return ErrPostNotFound
	}
	return &PersistenceError{Op: op, Err: err}
}

// PublishBlockedError is returned when a stored draft lacks what publishing
// requires. The admin opens the post in the editor instead.
type PublishBlockedError struct {
	PostID  string
	Missing []string
}

func (e *PublishBlockedError) Error() string {
	return fmt.Sprintf("post %s cannot be published: missing %s", e.PostID, strings.Join(e.Missing, ", "))
}

// mediaFailure turns gateway input errors into a ValidationError for field.
// Upload failures keep their type.
func mediaFailure(field string, err error) error {
	var uploadErr *media.UploadError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &uploadErr):
		return err
	case errors.Is(err, media.ErrFileTooLarge):
		return invalid(field, "Arquivo maior que o permitido ("+strings.TrimPrefix(err.Error(), media.ErrFileTooLarge.Error()+": ")+").")
	case errors.Is(err, media.ErrNoFile):
		return invalid(field, "Selecione um arquivo.")
	case errors.Is(err, media.ErrNotImage):
		return invalid(field, "O arquivo precisa ser uma imagem válida.")
	default:
		return fmt.Errorf("process %s: %w", field, err)
	}
}
