package service

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/clinicblog/internal/content"
	"github.com/clinicblog/internal/db"
	"github.com/clinicblog/internal/store"
)

const (
	// RelatedPostsLimit is how many related posts a post page shows.
	RelatedPostsLimit = 3
	relatedPoolSize   = 24
	renderCacheSize   = 256
)

// PostView is a published post ready for the public page.
type PostView struct {
	Post   db.Post           `json:"post"`
	SlugID string            `json:"slugId"`
	HTML   string            `json:"html"`
	TOC    []content.TOCItem `json:"toc"`
}

// PostCard is the list entry of a published post.
type PostCard struct {
	ID            string `json:"id"`
	SlugID        string `json:"slugId"`
	Title         string `json:"title"`
	Summary       string `json:"summary"`
	FeaturedImage string `json:"featuredImage"`
	Date          int64  `json:"date"`
}

// RenderService 负责前台文章渲染，并缓存渲染结果
type RenderService struct {
	store  store.Store
	cache  *lru.Cache[string, PostView]
	logger *slog.Logger
}

func NewRenderService(st store.Store, logger *slog.Logger) *RenderService {
	if logger == nil {
		logger = slog.Default()
	}
	cache, _ := lru.New[string, PostView](renderCacheSize)
	return &RenderService{store: st, cache: cache, logger: logger.With("component", "render")}
}

// Published lists published posts, newest first. limit <= 0 returns all.
func (s *RenderService) Published(ctx context.Context, limit int) ([]PostCard, error) {
	posts, err := s.store.ListPosts(ctx, store.PostQuery{Status: db.StatusPublished, OrderByDate: true, Limit: limit})
	if err != nil {
		return nil, persistence("list posts", err)
	}
	SortByRecency(posts)
	cards := make([]PostCard, 0, len(posts))
	for _, post := range posts {
		cards = append(cards, cardFor(post))
	}
	return cards, nil
}

// Post resolves slugID to a published post and renders it: the content is
// sanitized again and headings get anchors for the table of contents.
func (s *RenderService) Post(ctx context.Context, slugID string) (PostView, error) {
	id := content.ExtractIDFromSlugID(slugID)
	if id == "" {
		return PostView{}, ErrPostNotFound
	}
	post, err := s.store.GetPost(ctx, id)
	if err != nil {
		return PostView{}, persistence("load post", err)
	}
	if !post.IsPublished() {
		return PostView{}, ErrPostNotFound
	}

	key := cacheKey(post)
	if view, ok := s.cache.Get(key); ok {
		return view, nil
	}

	rendered, toc := content.AnnotateHeadings(content.Sanitize(post.Content))
	view := PostView{
		Post:   post,
		SlugID: content.BuildPostSlugID(post.Title, post.ID, post.Slug),
		HTML:   rendered,
		TOC:    toc,
	}
	s.cache.Add(key, view)
	s.logger.Debug("post rendered", "id", post.ID, "headings", len(toc))
	return view, nil
}

// Related returns up to RelatedPostsLimit other published posts taken from
// the most recent ones.
func (s *RenderService) Related(ctx context.Context, slugID string) ([]PostCard, error) {
	id := content.ExtractIDFromSlugID(slugID)
	cards, err := s.Published(ctx, relatedPoolSize)
	if err != nil {
		return nil, err
	}
	related := make([]PostCard, 0, RelatedPostsLimit)
	for _, card := range cards {
		if card.ID == id {
			continue
		}
		related = append(related, card)
		if len(related) == RelatedPostsLimit {
			break
		}
	}
	return related, nil
}

// Purge drops cached renders. Saves change updatedAt, so stale entries are
// never served; Purge only frees memory.
func (s *RenderService) Purge() {
	s.cache.Purge()
}

func cacheKey(post db.Post) string {
	var updated int64
	if post.UpdatedAt != nil {
		updated = post.UpdatedAt.UnixNano()
	}
	return fmt.Sprintf("%s:%d", post.ID, updated)
}

func cardFor(post db.Post) PostCard {
	return PostCard{
		ID:            post.ID,
		SlugID:        content.BuildPostSlugID(post.Title, post.ID, post.Slug),
		Title:         post.Title,
		Summary:       post.Summary,
		FeaturedImage: post.FeaturedImage,
		Date:          post.SortMillis(),
	}
}
