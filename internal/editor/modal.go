package editor

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/clinicblog/internal/content"
	"github.com/clinicblog/internal/media"
)

var (
	ErrModalClosed   = errors.New("media modal is not open")
	ErrUnknownKind   = errors.New("unknown modal kind")
	ErrUnknownSource = errors.New("unknown modal source type")
	ErrInvalidInput  = errors.New("modal input is invalid")
	ErrInsertFailed  = errors.New("failed to insert content")
)

type Kind string

const (
	KindImage  Kind = "image"
	KindVideo  Kind = "video"
	KindButton Kind = "button"
)

type SourceType string

const (
	SourceURL  SourceType = "url"
	SourceFile SourceType = "file"
)

// Field keys of the modal form and its error map.
const (
	FieldURL     = "url"
	FieldFile    = "file"
	FieldAlt     = "alt"
	FieldCaption = "caption"
	FieldSource  = "source"
	FieldLabel   = "label"
	FieldLink    = "link"
	FieldForm    = "form"
)

const (
	MaxImageBytes int64 = 5 << 20
	MaxVideoBytes int64 = 25 << 20
)

// ButtonDefaults prefill the button form.
type ButtonDefaults struct {
	Label string
	URL   string
}

// Modal is the insertion dialog for images, videos and buttons. It never
// touches the document unless Submit succeeds.
type Modal struct {
	Open       bool              `json:"open"`
	Kind       Kind              `json:"kind,omitempty"`
	SourceType SourceType        `json:"sourceType,omitempty"`
	Fields     map[string]string `json:"fields"`
	Errors     map[string]string `json:"errors"`
	File       *media.File       `json:"-"`
	FileName   string            `json:"fileName,omitempty"`

	defaults ButtonDefaults
}

func NewModal(defaults ButtonDefaults) *Modal {
	m := &Modal{defaults: defaults}
	m.reset()
	return m
}

func (m *Modal) reset() {
	m.Open = false
	m.Kind = ""
	m.SourceType = ""
	m.Fields = map[string]string{}
	m.Errors = map[string]string{}
	m.File = nil
	m.FileName = ""
}

// OpenFor opens the modal for kind with the url source selected.
func (m *Modal) OpenFor(kind Kind) error {
	switch kind {
	case KindImage, KindVideo, KindButton:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	m.reset()
	m.Open = true
	m.Kind = kind
	m.SourceType = SourceURL
	if kind == KindButton {
		m.Fields[FieldLabel] = m.defaults.Label
		m.Fields[FieldLink] = m.defaults.URL
	}
	return nil
}

// SetSourceType switches between url and file input, clearing both inputs
// and every error.
func (m *Modal) SetSourceType(source SourceType) error {
	if !m.Open {
		return ErrModalClosed
	}
	if source != SourceURL && source != SourceFile {
		return fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
	m.SourceType = source
	delete(m.Fields, FieldURL)
	m.File = nil
	m.FileName = ""
	m.Errors = map[string]string{}
	return nil
}

func (m *Modal) SetField(key, value string) {
	if m.Fields == nil {
		m.Fields = map[string]string{}
	}
	m.Fields[key] = value
	delete(m.Errors, key)
}

func (m *Modal) SetFile(file *media.File) {
	m.File = file
	m.FileName = ""
	if file != nil {
		m.FileName = file.Name
	}
	delete(m.Errors, FieldFile)
}

func (m *Modal) Cancel() {
	m.reset()
}

// Insert is the validated request of one modal kind.
type Insert interface {
	apply(e *Editor, index int) (int, error)
}

type ImageInsert struct {
	Src     string
	Alt     string
	Caption string
	Source  string
}

func (i ImageInsert) apply(e *Editor, index int) (int, error) {
	return e.InsertEmbed(index, FigureImage{Src: i.Src, Alt: i.Alt, Caption: i.Caption, Source: i.Source})
}

type VideoInsert struct {
	Src string
}

func (v VideoInsert) apply(e *Editor, index int) (int, error) {
	return e.InsertEmbed(index, Video{Src: v.Src})
}

type ButtonInsert struct {
	Label string
	Href  string
}

func (b ButtonInsert) apply(e *Editor, index int) (int, error) {
	return e.InsertButton(index, ButtonLink{Text: b.Label, Href: b.Href})
}

// Submit validates the form and inserts the result at the caret (or the end
// of the document). On validation errors the modal stays open with Errors
// filled; on insertion failure Errors[FieldForm] is set and the document is
// left unchanged.
func (m *Modal) Submit(e *Editor) (err error) {
	if !m.Open {
		return ErrModalClosed
	}

	insert, errs := m.Request()
	if len(errs) > 0 {
		m.Errors = errs
		return ErrInvalidInput
	}

	index := e.insertionIndex()
	snapshot := e.doc.clone()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrInsertFailed, r)
		}
		if err != nil {
			e.doc = snapshot
			m.Errors = map[string]string{FieldForm: "Não foi possível inserir o conteúdo. Tente novamente."}
		}
	}()

	advance, err := insert.apply(e, index)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInsertFailed, err)
	}
	e.SetSelection(index+advance, 0)
	m.reset()
	return nil
}

// Request validates the current form into a typed insert.
func (m *Modal) Request() (Insert, map[string]string) {
	errs := map[string]string{}
	field := func(key string) string { return strings.TrimSpace(m.Fields[key]) }

	switch m.Kind {
	case KindImage:
		src, ok := m.source(errs, "image/", MaxImageBytes)
		if !ok {
			return nil, errs
		}
		return ImageInsert{Src: src, Alt: field(FieldAlt), Caption: field(FieldCaption), Source: field(FieldSource)}, nil

	case KindVideo:
		src, ok := m.source(errs, "video/", MaxVideoBytes)
		if !ok {
			return nil, errs
		}
		if m.SourceType == SourceURL {
			normalized, err := content.NormalizeYoutubeURL(src)
			if err != nil {
				errs[FieldURL] = "Use um link válido do YouTube (youtube.com/watch?v=, youtu.be/ ou /embed/)."
				return nil, errs
			}
			src = normalized
		}
		return VideoInsert{Src: src}, nil

	case KindButton:
		label := field(FieldLabel)
		link := field(FieldLink)
		if label == "" {
			errs[FieldLabel] = "Informe o texto do botão."
		}
		if link == "" {
			errs[FieldLink] = "Informe o link do botão."
		}
		if len(errs) > 0 {
			return nil, errs
		}
		href, err := content.NormalizeLinkURL(link)
		if err != nil {
			errs[FieldLink] = "Use um link http(s), mailto:, tel:, /caminho ou #âncora."
			return nil, errs
		}
		return ButtonInsert{Label: label, Href: href}, nil
	}

	errs[FieldForm] = "Tipo de conteúdo desconhecido."
	return nil, errs
}

// source reads the url or file input of image and video forms. Files are
// inlined as data: URLs and uploaded when the post is saved.
func (m *Modal) source(errs map[string]string, mimePrefix string, maxBytes int64) (string, bool) {
	if m.SourceType == SourceFile {
		if m.File == nil || m.File.Empty() {
			errs[FieldFile] = "Selecione um arquivo."
			return "", false
		}
		contentType := media.DetectContentType(*m.File)
		if !strings.HasPrefix(contentType, mimePrefix) {
			errs[FieldFile] = "Tipo de arquivo não suportado."
			return "", false
		}
		if m.File.Size > maxBytes || int64(len(m.File.Data)) > maxBytes {
			errs[FieldFile] = fmt.Sprintf("O arquivo deve ter no máximo %s.", humanize.IBytes(uint64(maxBytes)))
			return "", false
		}
		return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(m.File.Data), true
	}

	raw := strings.TrimSpace(m.Fields[FieldURL])
	if raw == "" {
		errs[FieldURL] = "Informe a URL."
		return "", false
	}
	if !isHTTPURL(raw) {
		errs[FieldURL] = "Use uma URL http(s) válida."
		return "", false
	}
	return raw, true
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}
