package service

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/clinicblog/internal/db"
	"github.com/clinicblog/internal/metrics"
	"github.com/clinicblog/internal/store"
)

// Comment length limits, in runes, applied after trimming.
const (
	MaxCommentNameLength    = 80
	MaxCommentEmailLength   = 120
	MaxCommentMessageLength = 2000
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// CommentService 处理前台评论的提交与线程整理
type CommentService struct {
	store  store.Store
	logger *slog.Logger
}

// CommentInput is a visitor comment as submitted.
type CommentInput struct {
	Name     string
	Email    string
	Message  string
	ParentID string
}

// CommentView is the public shape of a comment. Email never leaves the
// server.
type CommentView struct {
	ID        string        `json:"id"`
	ParentID  string        `json:"parentId,omitempty"`
	Name      string        `json:"name"`
	Message   string        `json:"message"`
	CreatedAt *time.Time    `json:"createdAt,omitempty"`
	Replies   []CommentView `json:"replies,omitempty"`
}

func NewCommentService(st store.Store, logger *slog.Logger) *CommentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommentService{store: st, logger: logger.With("component", "comments")}
}

// Submit validates and stores a comment on a published post. Replies must
// answer a top-level comment of the same post.
func (s *CommentService) Submit(ctx context.Context, postID string, in CommentInput) (view CommentView, err error) {
	defer func() { metrics.CommentsSubmitted.WithLabelValues(metrics.Result(err)).Inc() }()

	comment, err := normalizeComment(in)
	if err != nil {
		return CommentView{}, err
	}

	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return CommentView{}, persistence("load post", err)
	}
	if !post.IsPublished() {
		return CommentView{}, ErrPostNotFound
	}
	comment.PostID = post.ID

	if comment.ParentID != nil {
		if err := s.checkParent(ctx, post.ID, *comment.ParentID); err != nil {
			return CommentView{}, err
		}
	}

	saved, err := s.store.AddComment(ctx, comment)
	if err != nil {
		return CommentView{}, persistence("add comment", err)
	}
	s.logger.Info("comment added", "post", post.ID, "comment", saved.ID, "reply", saved.IsReply())
	return toView(saved), nil
}

func (s *CommentService) checkParent(ctx context.Context, postID, parentID string) error {
	parent, err := s.store.GetComment(ctx, parentID)
	if errors.Is(err, store.ErrNotFound) {
		return invalid("parentId", "O comentário respondido não existe.")
	}
	if err != nil {
		return persistence("load comment", err)
	}
	if parent.PostID != postID {
		return invalid("parentId", "O comentário respondido não existe.")
	}
	if parent.IsReply() {
		return invalid("parentId", "Não é possível responder a uma resposta.")
	}
	return nil
}

func normalizeComment(in CommentInput) (db.Comment, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	message := strings.TrimSpace(in.Message)

	if name == "" || email == "" || message == "" {
		field := "name"
		switch {
		case name == "":
		case email == "":
			field = "email"
		default:
			field = "message"
		}
		return db.Comment{}, invalid(field, "Nome, email e comentário são obrigatórios.")
	}
	if !emailPattern.MatchString(email) {
		return db.Comment{}, invalid("email", "Digite um email válido.")
	}

	comment := db.Comment{
		Name:    truncateRunes(name, MaxCommentNameLength),
		Email:   strings.ToLower(truncateRunes(email, MaxCommentEmailLength)),
		Message: truncateRunes(message, MaxCommentMessageLength),
	}
	if parent := strings.TrimSpace(in.ParentID); parent != "" {
		comment.ParentID = &parent
	}
	return comment, nil
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}

// Threads returns the comments of a post grouped under their top-level
// comment, oldest first.
func (s *CommentService) Threads(ctx context.Context, postID string) ([]CommentView, error) {
	comments, err := s.store.ListComments(ctx, postID)
	if err != nil {
		return nil, persistence("list comments", err)
	}
	return BuildThreads(comments), nil
}

// Watch streams thread snapshots until ctx is done.
func (s *CommentService) Watch(ctx context.Context, postID string) (<-chan []CommentView, error) {
	feed, err := s.store.WatchComments(ctx, postID)
	if err != nil {
		return nil, persistence("watch comments", err)
	}
	out := make(chan []CommentView)
	go func() {
		defer close(out)
		for comments := range feed {
			select {
			case out <- BuildThreads(comments):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// BuildThreads groups replies under their parent. Replies whose parent is
// absent or is itself a reply are dropped.
func BuildThreads(comments []db.Comment) []CommentView {
	ordered := append([]db.Comment(nil), comments...)
	sortCommentsByCreated(ordered)

	threads := make([]CommentView, 0, len(ordered))
	index := make(map[string]int)
	for _, c := range ordered {
		if !c.IsReply() {
			index[c.ID] = len(threads)
			threads = append(threads, toView(c))
		}
	}
	for _, c := range ordered {
		if !c.IsReply() {
			continue
		}
		if pos, ok := index[*c.ParentID]; ok {
			threads[pos].Replies = append(threads[pos].Replies, toView(c))
		}
	}
	return threads
}

// CountThreads counts top-level comments and replies.
func CountThreads(threads []CommentView) int {
	total := 0
	for _, t := range threads {
		total += 1 + len(t.Replies)
	}
	return total
}

func sortCommentsByCreated(comments []db.Comment) {
	millis := func(c db.Comment) int64 {
		if c.CreatedAt == nil {
			return 0
		}
		return c.CreatedAt.UnixMilli()
	}
	sort.SliceStable(comments, func(i, j int) bool {
		return millis(comments[i]) < millis(comments[j])
	})
}

func toView(c db.Comment) CommentView {
	view := CommentView{ID: c.ID, Name: c.Name, Message: c.Message, CreatedAt: c.CreatedAt}
	if c.ParentID != nil {
		view.ParentID = *c.ParentID
	}
	return view
}
