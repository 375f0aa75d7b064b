package models

import (
	"time"

	"gorm.io/gorm"
)

// Article represents a short-form published text
type Article struct {
	ID      uint   `gorm:"primaryKey"                    json:"id"`
	Title   string `gorm:"type:varchar(200);not null"    json:"title"`
	Content string `gorm:"type:text;not null"            json:"content"`

	// SearchText holds title and content folded by FoldSearch
	SearchText string `gorm:"type:text;not null;default:''" json:"-"`

	// CreatedAt is set once on insert and never updated
	CreatedAt time.Time `gorm:"not null;index:idx_article_created" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Article) TableName() string { return "article" }

func (a *Article) BeforeSave(tx *gorm.DB) error {
	a.SearchText = FoldSearch(a.Title, a.Content)
	return nil
}
