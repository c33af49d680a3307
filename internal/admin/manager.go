package admin

import (
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/clinicblog/internal/editor"
)

const maxWorkspaces = 64

// Manager 按作者保存后台工作区，超出容量时淘汰最久未用的
type Manager struct {
	mu       sync.Mutex
	items    *lru.Cache[string, *Workspace]
	posts    PostService
	registry *editor.Registry
	defaults editor.ButtonDefaults
	logger   *slog.Logger
}

func NewManager(posts PostService, registry *editor.Registry, defaults editor.ButtonDefaults, logger *slog.Logger) *Manager {
	items, _ := lru.New[string, *Workspace](maxWorkspaces)
	return &Manager{items: items, posts: posts, registry: registry, defaults: defaults, logger: logger}
}

// For returns the workspace of authorID, creating it on first use.
func (m *Manager) For(authorID string) *Workspace {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ws, ok := m.items.Get(authorID); ok {
		return ws
	}
	ws := NewWorkspace(Options{
		AuthorID:       authorID,
		Posts:          m.posts,
		Registry:       m.registry,
		ButtonDefaults: m.defaults,
		Logger:         m.logger,
	})
	m.items.Add(authorID, ws)
	return ws
}

// Forget drops the workspace of authorID, e.g. on sign out.
func (m *Manager) Forget(authorID string) {
	m.items.Remove(authorID)
}
