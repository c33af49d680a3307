package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/clinicblog/internal/db"
	"github.com/clinicblog/internal/store"
)

// Store keeps posts and comments in a relational database through gorm.
type Store struct {
	db  *gorm.DB
	hub *store.CommentHub
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

func New(gdb *gorm.DB) *Store {
	return &Store{
		db:  gdb,
		hub: store.NewCommentHub(),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the server clock; tests use it for stable timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return err
}

func (s *Store) GetPost(ctx context.Context, id string) (db.Post, error) {
	var post db.Post
	if err := s.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		return db.Post{}, translate(err)
	}
	return post, nil
}

func (s *Store) ListPosts(ctx context.Context, query store.PostQuery) ([]db.Post, error) {
	tx := s.db.WithContext(ctx).Model(&db.Post{})
	if query.AuthorID != "" {
		tx = tx.Where("author_id = ?", query.AuthorID)
	}
	switch query.Status {
	case "":
	case db.StatusDraft:
		tx = tx.Where("status = ?", db.StatusDraft)
	default:
		tx = tx.Where("status IS NULL OR status <> ?", db.StatusDraft)
	}
	if query.OrderByDate {
		// NULL dates would sort first on postgres
		tx = tx.Order("COALESCE(published_at, date, updated_at, created_at) DESC")
	}
	if query.Limit > 0 {
		tx = tx.Limit(query.Limit)
	}

	var posts []db.Post
	if err := tx.Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *Store) CreatePost(ctx context.Context, fields store.Fields) (string, error) {
	var post db.Post
	if err := store.ApplyFields(&post, fields, s.now()); err != nil {
		return "", err
	}
	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		return "", err
	}
	return post.ID, nil
}

func (s *Store) UpdatePost(ctx context.Context, id string, fields store.Fields) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post db.Post
		if err := tx.First(&post, "id = ?", id).Error; err != nil {
			return translate(err)
		}
		if err := store.ApplyFields(&post, fields, s.now()); err != nil {
			return err
		}
		return tx.Save(&post).Error
	})
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&db.Post{}, "id = ?", id).Error
}

func (s *Store) ListCommentIDs(ctx context.Context, postID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&db.Comment{}).
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (s *Store) DeleteComments(ctx context.Context, postID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) > store.MaxBatchSize {
		return fmt.Errorf("%w: %d", store.ErrBatchTooLarge, len(ids))
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Where("post_id = ? AND id IN ?", postID, ids).Delete(&db.Comment{}).Error
	})
}

func (s *Store) AddComment(ctx context.Context, comment db.Comment) (db.Comment, error) {
	if comment.CreatedAt == nil {
		now := s.now()
		comment.CreatedAt = &now
	}
	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		return db.Comment{}, err
	}

	if comments, err := s.ListComments(ctx, comment.PostID); err == nil {
		s.hub.Publish(comment.PostID, comments)
	}
	return comment, nil
}

func (s *Store) GetComment(ctx context.Context, id string) (db.Comment, error) {
	var comment db.Comment
	if err := s.db.WithContext(ctx).First(&comment, "id = ?", id).Error; err != nil {
		return db.Comment{}, translate(err)
	}
	return comment, nil
}

func (s *Store) ListComments(ctx context.Context, postID string) ([]db.Comment, error) {
	var comments []db.Comment
	err := s.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Find(&comments).Error
	return comments, err
}

func (s *Store) WatchComments(ctx context.Context, postID string) (<-chan []db.Comment, error) {
	return s.hub.Watch(ctx, postID, func(ctx context.Context) ([]db.Comment, error) {
		return s.ListComments(ctx, postID)
	})
}
