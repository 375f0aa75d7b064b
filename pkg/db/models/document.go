package models

import (
	"time"

	"gorm.io/gorm"
)

// Document represents metadata for an uploaded file held by the storage gateway
type Document struct {
	ID               uint   `gorm:"primaryKey"                                    json:"id"`
	StoredFileID     string `gorm:"type:varchar(255);not null;uniqueIndex"        json:"-"`
	OriginalFilename string `gorm:"type:varchar(200);not null"                    json:"original_filename"`
	ContentType      string `gorm:"type:varchar(100)"                             json:"content_type"`
	Size             int64  `gorm:"not null;default:0"                            json:"size"`

	// Descriptive metadata
	Title       string `gorm:"type:varchar(200);not null" json:"title"`
	Author      string `gorm:"type:varchar(200)"          json:"author,omitempty"`
	Year        *int   `json:"year,omitempty"`
	Description string `gorm:"type:text"                  json:"description,omitempty"`

	// SearchText holds title and description folded by FoldSearch
	SearchText string `gorm:"type:text;not null;default:''" json:"-"`

	// ImageID references a stored image or derived thumbnail, empty if none
	ImageID string `gorm:"type:varchar(255)" json:"-"`

	UploadedAt time.Time `gorm:"not null;index:idx_document_uploaded" json:"uploaded_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Relationships
	Tags []Tag `gorm:"many2many:document_tag;constraint:OnDelete:CASCADE" json:"tags"`
}

func (Document) TableName() string { return "document" }

// HasImage reports whether an image or thumbnail is attached.
func (d *Document) HasImage() bool {
	return d.ImageID != ""
}

func (d *Document) BeforeSave(tx *gorm.DB) error {
	d.SearchText = FoldSearch(d.Title, d.Description)
	return nil
}
