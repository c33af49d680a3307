package db

import (
	"time"

	"gorm.io/gorm"
)

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Post 定义了文章模型
type Post struct {
	ID            string     `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	Title         string     `bson:"title,omitempty" json:"title"`
	Summary       string     `gorm:"type:text" bson:"summary,omitempty" json:"summary"`
	Content       string     `gorm:"type:text" bson:"content,omitempty" json:"content"`
	Slug          string     `gorm:"index" bson:"slug,omitempty" json:"slug"`
	FeaturedImage string     `bson:"featured_image,omitempty" json:"featuredImage"`
	Status        string     `gorm:"index;size:16" bson:"status,omitempty" json:"status"`
	AuthorID      string     `gorm:"index;size:36" bson:"author_id,omitempty" json:"authorId"`
	CreatedAt     *time.Time `gorm:"autoCreateTime:false" bson:"created_at,omitempty" json:"createdAt,omitempty"`
	UpdatedAt     *time.Time `gorm:"autoUpdateTime:false" bson:"updated_at,omitempty" json:"updatedAt,omitempty"`
	PublishedAt   *time.Time `bson:"published_at,omitempty" json:"publishedAt,omitempty"`
	Date          *time.Time `gorm:"index" bson:"date,omitempty" json:"date,omitempty"`
}

// BeforeCreate assigns the opaque document id.
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = NewID()
	}
	return nil
}

// EffectiveStatus treats anything that is not explicitly a draft as
// published; legacy records carry no status at all.
func (p Post) EffectiveStatus() string {
	if p.Status == StatusDraft {
		return StatusDraft
	}
	return StatusPublished
}

func (p Post) IsDraft() bool {
	return p.EffectiveStatus() == StatusDraft
}

func (p Post) IsPublished() bool {
	return p.EffectiveStatus() == StatusPublished
}

// DisplayDate returns the best available timestamp: publishedAt, date,
// updatedAt, createdAt. The first non-nil one wins.
func (p Post) DisplayDate() *time.Time {
	for _, candidate := range []*time.Time{p.PublishedAt, p.Date, p.UpdatedAt, p.CreatedAt} {
		if candidate != nil && !candidate.IsZero() {
			return candidate
		}
	}
	return nil
}

// SortMillis is DisplayDate in unix milliseconds, 0 when no timestamp exists.
func (p Post) SortMillis() int64 {
	if ts := p.DisplayDate(); ts != nil {
		return ts.UnixMilli()
	}
	return 0
}
