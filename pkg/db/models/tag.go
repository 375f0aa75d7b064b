package models

import "time"

// Tag is a normalized, lower-cased label shared between documents
type Tag struct {
	ID   uint   `gorm:"primaryKey"                                json:"id"`
	Name string `gorm:"type:varchar(50);not null;uniqueIndex:idx_tag_name" json:"name"`

	CreatedAt time.Time `json:"created_at"`
}

func (Tag) TableName() string { return "tag" }

// TagNames returns the names of tags in their given order.
func TagNames(tags []Tag) []string {
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.Name)
	}
	return names
}
