package editor

import (
	"errors"
	"sort"
	"sync"
)

var (
	ErrRegistryNotInitialized = errors.New("editor registry not initialized")
	ErrRegistryInitialized    = errors.New("editor registry already initialized")
	ErrUnknownFormat          = errors.New("unknown editor format")
)

type Scope int

const (
	ScopeBlock Scope = iota
	ScopeInline
)

func (s Scope) String() string {
	if s == ScopeInline {
		return "inline"
	}
	return "block"
}

const (
	FormatFigureImage = "figure-image"
	FormatButtonLink  = "button-link"
	FormatSpacer      = "spacer"
	FormatVideo       = "video"
	FormatDivider     = "divider"
	FormatCodeBlock   = "code-block"
	FormatImage       = "image"
	FormatLink        = "link"
)

// Format describes one registered document format and the markup it owns.
type Format struct {
	Name    string `json:"name"`
	Scope   Scope  `json:"-"`
	Tag     string `json:"tag"`
	Class   string `json:"class,omitempty"`
	Extends string `json:"extends,omitempty"`
}

// Registry holds the custom formats known to editors. Initialize must run
// once at startup before any editor is created.
type Registry struct {
	mu          sync.RWMutex
	initialized bool
	formats     map[string]Format
}

func NewRegistry() *Registry {
	return &Registry{formats: map[string]Format{}}
}

// Initialize registers the built-in formats. Calling it twice is an error.
func (r *Registry) Initialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return ErrRegistryInitialized
	}
	for _, f := range []Format{
		{Name: FormatLink, Scope: ScopeInline, Tag: "a"},
		{Name: FormatFigureImage, Scope: ScopeBlock, Tag: "figure", Class: "ql-figure-image"},
		// plain images are stored as captionless figures
		{Name: FormatImage, Scope: ScopeBlock, Tag: "figure", Class: "ql-figure-image", Extends: FormatFigureImage},
		{Name: FormatButtonLink, Scope: ScopeInline, Tag: "a", Class: "ql-button", Extends: FormatLink},
		{Name: FormatSpacer, Scope: ScopeBlock, Tag: "p", Class: "ql-spacer"},
		{Name: FormatVideo, Scope: ScopeBlock, Tag: "iframe", Class: "ql-video"},
		{Name: FormatDivider, Scope: ScopeBlock, Tag: "hr"},
		{Name: FormatCodeBlock, Scope: ScopeBlock, Tag: "pre"},
	} {
		r.formats[f.Name] = f
	}
	r.initialized = true
	return nil
}

func (r *Registry) Initialized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.initialized
}

func (r *Registry) Lookup(name string) (Format, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.formats[name]
	return f, ok
}

// Formats lists registered formats sorted by name.
func (r *Registry) Formats() []Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Format, 0, len(r.formats))
	for _, f := range r.formats {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// NewEditor loads html into a fresh editor bound to this registry.
func (r *Registry) NewEditor(html string) (*Editor, error) {
	if !r.Initialized() {
		return nil, ErrRegistryNotInitialized
	}
	doc, err := ParseDocument(html)
	if err != nil {
		return nil, err
	}
	return &Editor{registry: r, doc: doc}, nil
}
