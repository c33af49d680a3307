package db

import (
	"time"

	"gorm.io/gorm"
)

// Comment belongs to exactly one post. ParentID is nil for top-level comments.
type Comment struct {
	ID        string     `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	PostID    string     `gorm:"index;size:36;not null" bson:"post_id" json:"postId"`
	ParentID  *string    `gorm:"index;size:36" bson:"parent_id" json:"parentId"`
	Name      string     `gorm:"size:80;not null" bson:"name" json:"name"`
	Email     string     `gorm:"size:120;not null" bson:"email" json:"-"`
	Message   string     `gorm:"type:text;not null" bson:"message" json:"message"`
	CreatedAt *time.Time `gorm:"index;autoCreateTime:false" bson:"created_at,omitempty" json:"createdAt,omitempty"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = NewID()
	}
	return nil
}

// IsReply reports whether the comment answers another comment.
func (c Comment) IsReply() bool {
	return c.ParentID != nil && *c.ParentID != ""
}
