package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/clinicblog/internal/content"
	"github.com/clinicblog/internal/db"
	"github.com/clinicblog/internal/media"
	"github.com/clinicblog/internal/metrics"
	"github.com/clinicblog/internal/store"
)

// Upload limits applied by the save pipeline.
var (
	FeaturedImageOptions = media.ImageOptions{MaxWidth: 1200, MaxHeight: 800, MaxSizeMB: 2}
	InlineImageOptions   = media.ImageOptions{MaxWidth: 1200, MaxHeight: 1200, MaxSizeMB: 2}
	AvatarImageOptions   = media.ImageOptions{MaxWidth: 150, MaxHeight: 150, MaxSizeMB: 10}
)

// MaxInlineVideoBytes bounds videos carried inline in post content.
const MaxInlineVideoBytes = 25 << 20

// Form field keys used in validation errors.
const (
	FieldTitle         = "title"
	FieldSummary       = "summary"
	FieldContent       = "content"
	FieldFeaturedImage = "featuredImage"
)

// PostService 负责文章的保存、发布与删除流程
type PostService struct {
	store  store.Store
	media  *media.Gateway
	logger *slog.Logger
	now    func() time.Time
}

// SaveInput is the edit form as submitted. An empty EditingID creates a post.
type SaveInput struct {
	EditingID     string
	AuthorID      string
	TargetStatus  string
	Title         string
	Summary       string
	Content       string
	FeaturedImage string
	FeaturedFile  *media.File
}

// SaveResult describes the persisted post.
type SaveResult struct {
	ID            string
	Status        string
	FeaturedImage string
	InlineUploads int
}

// BulkPublishResult counts the outcome of BulkPublish.
type BulkPublishResult struct {
	Published      int
	SkippedInvalid int
}

func NewPostService(st store.Store, gateway *media.Gateway, logger *slog.Logger) *PostService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostService{
		store:  st,
		media:  gateway,
		logger: logger.With("component", "posts"),
		now:    time.Now,
	}
}

// NormalizeStatus maps anything but "draft" to published.
func NormalizeStatus(status string) string {
	if strings.TrimSpace(strings.ToLower(status)) == db.StatusDraft {
		return db.StatusDraft
	}
	return db.StatusPublished
}

// MissingPublishFields lists the required fields a post lacks. The featured
// image must also be an absolute http(s) URL.
func MissingPublishFields(title, summary, body, featuredImage string) []string {
	var missing []string
	if strings.TrimSpace(title) == "" {
		missing = append(missing, FieldTitle)
	}
	if strings.TrimSpace(summary) == "" {
		missing = append(missing, FieldSummary)
	}
	if IsBlankContent(body) {
		missing = append(missing, FieldContent)
	}
	if !isHTTPURL(featuredImage) {
		missing = append(missing, FieldFeaturedImage)
	}
	return missing
}

// CanPublish reports whether a stored post satisfies the publish rule.
func CanPublish(post db.Post) bool {
	return len(MissingPublishFields(post.Title, post.Summary, post.Content, post.FeaturedImage)) == 0
}

// IsBlankContent reports whether rich content holds neither text nor media.
// The editor serializes an empty document as "<p><br></p>".
func IsBlankContent(body string) bool {
	if strings.TrimSpace(body) == "" {
		return true
	}
	if strings.TrimSpace(content.PlainText(body)) != "" {
		return false
	}
	tokenizer := html.NewTokenizer(strings.NewReader(body))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return true
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "img", "video", "iframe", "source":
				return false
			}
		}
	}
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// Save runs the full save pipeline: validation, featured image, deferred
// media upload, cleanup and sanitization, then the store write. A published
// post stays published whatever TargetStatus says. The previous featured
// image is only deleted once the store write succeeded.
func (s *PostService) Save(ctx context.Context, in SaveInput) (result SaveResult, err error) {
	status := NormalizeStatus(in.TargetStatus)
	defer func() { metrics.PostSaves.WithLabelValues(status, metrics.Result(err)).Inc() }()

	title := strings.TrimSpace(in.Title)
	summary := strings.TrimSpace(in.Summary)
	featured := strings.TrimSpace(in.FeaturedImage)
	hasFile := in.FeaturedFile != nil && !in.FeaturedFile.Empty()

	if title == "" && summary == "" && IsBlankContent(in.Content) && featured == "" && !hasFile {
		return SaveResult{}, ErrNothingToSave
	}

	var existing *db.Post
	if in.EditingID != "" {
		post, err := s.store.GetPost(ctx, in.EditingID)
		if err != nil {
			return SaveResult{}, persistence("load post", err)
		}
		existing = &post
		if post.IsPublished() {
			status = db.StatusPublished
		}
	}

	if status == db.StatusPublished {
		if err := checkPublishable(title, summary, in.Content, featured, hasFile); err != nil {
			return SaveResult{}, err
		}
	}

	stamp := s.now().UnixMilli()
	var uploaded string
	if hasFile {
		dest := fmt.Sprintf("blog/featured/%d_%s", stamp, storageName(in.FeaturedFile.Name, "featured"))
		featured, err = s.media.UploadOptimizedImage(ctx, *in.FeaturedFile, dest, FeaturedImageOptions)
		if err != nil {
			return SaveResult{}, mediaFailure(FieldFeaturedImage, err)
		}
		uploaded = featured
	}
	// 保存失败时清理刚上传的封面，旧封面保持不变
	defer func() {
		if err != nil && uploaded != "" {
			s.media.DeleteBestEffort(ctx, uploaded)
		}
	}()

	body, uploads, err := content.RewriteInlineMedia(in.Content, func(m content.InlineMedia) (string, error) {
		return s.uploadInline(ctx, m, stamp)
	})
	if err != nil {
		return SaveResult{}, err
	}
	body = cleanContent(body)

	fields := store.Fields{
		store.FieldTitle:         title,
		store.FieldSummary:       summary,
		store.FieldContent:       body,
		store.FieldSlug:          content.Slugify(title),
		store.FieldFeaturedImage: featured,
		store.FieldStatus:        status,
		store.FieldUpdatedAt:     store.ServerTimestamp,
	}
	if status == db.StatusPublished {
		fields[store.FieldPublishedAt] = store.ServerTimestamp
		fields[store.FieldDate] = store.ServerTimestamp
	}

	id := in.EditingID
	if existing == nil {
		fields[store.FieldCreatedAt] = store.ServerTimestamp
		fields[store.FieldAuthorID] = in.AuthorID
		if id, err = s.store.CreatePost(ctx, fields); err != nil {
			return SaveResult{}, persistence("create post", err)
		}
	} else if err = s.store.UpdatePost(ctx, id, fields); err != nil {
		return SaveResult{}, persistence("update post", err)
	}

	if existing != nil && existing.FeaturedImage != "" && existing.FeaturedImage != featured {
		s.media.DeleteBestEffort(ctx, existing.FeaturedImage)
	}

	s.logger.Info("post saved", "id", id, "status", status, "inline_uploads", uploads, "created", existing == nil)
	return SaveResult{ID: id, Status: status, FeaturedImage: featured, InlineUploads: uploads}, nil
}

// cleanContent runs cleanup around the sanitizer. The sanitizer can empty a
// paragraph (an unsafe image is dropped), so cleanup runs again afterwards.
func cleanContent(body string) string {
	return content.CleanupHTML(content.Sanitize(content.CleanupHTML(body)))
}

func checkPublishable(title, summary, body, featured string, hasFile bool) error {
	missing := MissingPublishFields(title, summary, body, featured)
	if hasFile {
		missing = without(missing, FieldFeaturedImage)
	}
	if len(missing) == 0 {
		return nil
	}
	if len(missing) == 1 && missing[0] == FieldFeaturedImage && featured != "" {
		return invalid(FieldFeaturedImage, "A imagem destacada precisa ser uma URL http(s) válida.")
	}
	return invalid(missing[0], "Título, resumo, conteúdo e imagem destacada são obrigatórios para publicar.")
}

func without(list []string, drop string) []string {
	out := list[:0:0]
	for _, item := range list {
		if item != drop {
			out = append(out, item)
		}
	}
	return out
}

// uploadInline stores one data: source from the content and returns its
// durable URL.
func (s *PostService) uploadInline(ctx context.Context, m content.InlineMedia, stamp int64) (string, error) {
	mimeType, data, err := content.DecodeDataURL(m.Src)
	if err != nil {
		return "", invalid(FieldContent, "Mídia incorporada inválida.")
	}

	name := fmt.Sprintf("%d_%d.%s", stamp, m.Index, extensionFor(mimeType))
	file := media.NewFile(name, mimeType, data)
	isImage := m.Tag == "img" || strings.HasPrefix(mimeType, "image/")

	var durable string
	if isImage {
		durable, err = s.media.UploadOptimizedImage(ctx, file, "blog/images/"+name, InlineImageOptions)
	} else {
		durable, err = s.media.Upload(ctx, file, "blog/videos/"+name, MaxInlineVideoBytes)
	}
	if err != nil {
		return "", mediaFailure(FieldContent, err)
	}
	return durable, nil
}

func extensionFor(mimeType string) string {
	_, sub, ok := strings.Cut(mimeType, "/")
	if !ok || sub == "" {
		return "bin"
	}
	if idx := strings.IndexAny(sub, "+;"); idx >= 0 {
		sub = sub[:idx]
	}
	return content.Slugify(sub)
}

// storageName keeps an uploaded file name safe for an object key.
func storageName(name, fallback string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	ext := strings.ToLower(path.Ext(base))
	stem := content.Slugify(strings.TrimSuffix(base, path.Ext(base)))
	if stem == "" {
		stem = fallback
	}
	if ext != "" && content.Slugify(ext) == "" {
		ext = ""
	}
	return stem + ext
}

// PublishDraft publishes a stored draft after checking the stored record
// (not any unsaved form) against the publish rule.
func (s *PostService) PublishDraft(ctx context.Context, id string) (db.Post, error) {
	post, err := s.store.GetPost(ctx, id)
	if err != nil {
		return db.Post{}, persistence("load post", err)
	}
	if post.IsPublished() {
		return post, nil
	}
	if missing := MissingPublishFields(post.Title, post.Summary, post.Content, post.FeaturedImage); len(missing) > 0 {
		return post, &PublishBlockedError{PostID: id, Missing: missing}
	}
	if err := s.publish(ctx, id); err != nil {
		return post, err
	}
	return s.Get(ctx, id)
}

func (s *PostService) publish(ctx context.Context, id string) error {
	err := s.store.UpdatePost(ctx, id, store.Fields{
		store.FieldStatus:      db.StatusPublished,
		store.FieldPublishedAt: store.ServerTimestamp,
		store.FieldDate:        store.ServerTimestamp,
		store.FieldUpdatedAt:   store.ServerTimestamp,
	})
	if err != nil {
		return persistence("publish post", err)
	}
	s.logger.Info("post published", "id", id)
	return nil
}

// BulkPublish publishes the valid drafts among ids, one at a time. Posts
// that are not drafts are ignored; drafts failing the publish rule are
// counted as skipped.
func (s *PostService) BulkPublish(ctx context.Context, ids []string) (BulkPublishResult, error) {
	var result BulkPublishResult
	var ready []string
	for _, id := range ids {
		post, err := s.store.GetPost(ctx, id)
		if err != nil {
			if perr := persistence("load post", err); perr != ErrPostNotFound {
				return result, perr
			}
			continue
		}
		if !post.IsDraft() {
			continue
		}
		if !CanPublish(post) {
			result.SkippedInvalid++
			continue
		}
		ready = append(ready, id)
	}
	if len(ready) == 0 {
		return result, ErrNothingToPublish
	}

	for _, id := range ready {
		if err := s.publish(ctx, id); err != nil {
			return result, err
		}
		result.Published++
	}
	return result, nil
}

// Delete removes a post: featured image (best effort), comments in batches
// of store.MaxBatchSize, then the post itself.
func (s *PostService) Delete(ctx context.Context, id string) error {
	post, err := s.store.GetPost(ctx, id)
	if err != nil {
		return persistence("load post", err)
	}
	s.media.DeleteBestEffort(ctx, post.FeaturedImage)

	commentIDs, err := s.store.ListCommentIDs(ctx, id)
	if err != nil {
		return persistence("list comments", err)
	}
	for _, chunk := range store.Chunk(commentIDs, store.MaxBatchSize) {
		if err := s.store.DeleteComments(ctx, id, chunk); err != nil {
			return persistence("delete comments", err)
		}
	}

	if err := s.store.DeletePost(ctx, id); err != nil {
		return persistence("delete post", err)
	}
	s.logger.Info("post deleted", "id", id, "comments", len(commentIDs))
	return nil
}

// BulkDelete deletes ids in order and stops at the first failure. It returns
// how many posts were deleted before that failure.
func (s *PostService) BulkDelete(ctx context.Context, ids []string) (int, error) {
	for i, id := range ids {
		if err := s.Delete(ctx, id); err != nil {
			return i, fmt.Errorf("delete %s: %w", id, err)
		}
	}
	return len(ids), nil
}

func (s *PostService) Get(ctx context.Context, id string) (db.Post, error) {
	post, err := s.store.GetPost(ctx, id)
	if err != nil {
		return db.Post{}, persistence("load post", err)
	}
	return post, nil
}

// List returns the posts of an author (all posts when authorID is empty),
// newest first.
func (s *PostService) List(ctx context.Context, authorID string) ([]db.Post, error) {
	posts, err := s.store.ListPosts(ctx, store.PostQuery{AuthorID: authorID})
	if err != nil {
		return nil, persistence("list posts", err)
	}
	SortByRecency(posts)
	return posts, nil
}

// ImportMarkdown converts markdown into rich content and saves it as a new
// post.
func (s *PostService) ImportMarkdown(ctx context.Context, authorID, status, title, summary, markdown, featuredImage string) (SaveResult, error) {
	body, err := content.FromMarkdown(markdown)
	if err != nil {
		return SaveResult{}, invalid(FieldContent, "Markdown inválido: "+err.Error())
	}
	return s.Save(ctx, SaveInput{
		AuthorID:      authorID,
		TargetStatus:  status,
		Title:         title,
		Summary:       summary,
		Content:       body,
		FeaturedImage: featuredImage,
	})
}

// Resanitize runs cleanup and the sanitizer over every stored post and
// rewrites the ones whose content changed.
func (s *PostService) Resanitize(ctx context.Context) (int, error) {
	posts, err := s.store.ListPosts(ctx, store.PostQuery{})
	if err != nil {
		return 0, persistence("list posts", err)
	}
	changed := 0
	for _, post := range posts {
		cleaned := cleanContent(post.Content)
		if cleaned == post.Content {
			continue
		}
		if err := s.store.UpdatePost(ctx, post.ID, store.Fields{store.FieldContent: cleaned}); err != nil {
			return changed, persistence("update post", err)
		}
		changed++
	}
	return changed, nil
}

// Tab is one of the admin list views.
type Tab string

const (
	TabPublished Tab = "published"
	TabDrafts    Tab = "drafts"
)

// ParseTab defaults to the published view.
func ParseTab(raw string) Tab {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(TabDrafts), db.StatusDraft:
		return TabDrafts
	default:
		return TabPublished
	}
}

// TabFor returns the view that lists posts with the given status.
func TabFor(status string) Tab {
	if NormalizeStatus(status) == db.StatusDraft {
		return TabDrafts
	}
	return TabPublished
}

// VisiblePosts filters posts into tab and sorts them newest first. The input
// slice is left untouched.
func VisiblePosts(posts []db.Post, tab Tab) []db.Post {
	visible := make([]db.Post, 0, len(posts))
	for _, post := range posts {
		if TabFor(post.EffectiveStatus()) == tab {
			visible = append(visible, post)
		}
	}
	SortByRecency(visible)
	return visible
}

// SortByRecency orders posts by publishedAt, date, updatedAt, createdAt
// (first present wins), newest first.
func SortByRecency(posts []db.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].SortMillis() > posts[j].SortMillis()
	})
}
