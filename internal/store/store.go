package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clinicblog/internal/db"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrBatchTooLarge = fmt.Errorf("batch exceeds %d operations", MaxBatchSize)
	ErrUnknownField  = errors.New("unknown post field")
	ErrFieldType     = errors.New("unexpected post field type")
)

// MaxBatchSize bounds the number of writes committed in one batch.
const MaxBatchSize = 450

type serverTimestamp struct{}

// ServerTimestamp asks the store to write its own clock into a time field.
var ServerTimestamp = serverTimestamp{}

// Post field names accepted by CreatePost and UpdatePost.
const (
	FieldTitle         = "title"
	FieldSummary       = "summary"
	FieldContent       = "content"
	FieldSlug          = "slug"
	FieldFeaturedImage = "featuredImage"
	FieldStatus        = "status"
	FieldAuthorID      = "authorId"
	FieldCreatedAt     = "createdAt"
	FieldUpdatedAt     = "updatedAt"
	FieldPublishedAt   = "publishedAt"
	FieldDate          = "date"
)

// Fields is a partial post write. Time fields accept ServerTimestamp, a
// time.Time, a *time.Time or nil.
type Fields map[string]any

// PostQuery filters ListPosts. Status "published" also matches legacy posts
// without a status.
type PostQuery struct {
	AuthorID    string
	Status      string
	Limit       int
	OrderByDate bool
}

// Store is the document store behind posts and comments.
type Store interface {
	GetPost(ctx context.Context, id string) (db.Post, error)
	ListPosts(ctx context.Context, query PostQuery) ([]db.Post, error)
	CreatePost(ctx context.Context, fields Fields) (string, error)
	UpdatePost(ctx context.Context, id string, fields Fields) error
	DeletePost(ctx context.Context, id string) error

	ListCommentIDs(ctx context.Context, postID string) ([]string, error)
	// DeleteComments removes at most MaxBatchSize comments atomically.
	DeleteComments(ctx context.Context, postID string, ids []string) error
	AddComment(ctx context.Context, comment db.Comment) (db.Comment, error)
	GetComment(ctx context.Context, id string) (db.Comment, error)
	ListComments(ctx context.Context, postID string) ([]db.Comment, error)
	// WatchComments streams the full comment list of a post, starting with
	// the current snapshot, until ctx is done.
	WatchComments(ctx context.Context, postID string) (<-chan []db.Comment, error)
}

// ApplyFields writes fields onto post, resolving ServerTimestamp to now.
func ApplyFields(post *db.Post, fields Fields, now time.Time) error {
	for key, value := range fields {
		switch key {
		case FieldTitle, FieldSummary, FieldContent, FieldSlug, FieldFeaturedImage, FieldStatus, FieldAuthorID:
			s, ok := value.(string)
			if !ok && value != nil {
				return fmt.Errorf("%w: %s", ErrFieldType, key)
			}
			*stringField(post, key) = s
		case FieldCreatedAt, FieldUpdatedAt, FieldPublishedAt, FieldDate:
			ts, err := resolveTime(value, now)
			if err != nil {
				return fmt.Errorf("%w: %s", err, key)
			}
			*timeField(post, key) = ts
		default:
			return fmt.Errorf("%w: %s", ErrUnknownField, key)
		}
	}
	return nil
}

func stringField(post *db.Post, key string) *string {
	switch key {
	case FieldTitle:
		return &post.Title
	case FieldSummary:
		return &post.Summary
	case FieldContent:
		return &post.Content
	case FieldSlug:
		return &post.Slug
	case FieldFeaturedImage:
		return &post.FeaturedImage
	case FieldStatus:
		return &post.Status
	default:
		return &post.AuthorID
	}
}

func timeField(post *db.Post, key string) **time.Time {
	switch key {
	case FieldCreatedAt:
		return &post.CreatedAt
	case FieldUpdatedAt:
		return &post.UpdatedAt
	case FieldPublishedAt:
		return &post.PublishedAt
	default:
		return &post.Date
	}
}

func resolveTime(value any, now time.Time) (*time.Time, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case serverTimestamp:
		ts := now
		return &ts, nil
	case time.Time:
		return &v, nil
	case *time.Time:
		return v, nil
	default:
		return nil, ErrFieldType
	}
}

// Chunk splits ids into slices of at most size elements.
func Chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = MaxBatchSize
	}
	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
