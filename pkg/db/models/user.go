package models

import "time"

// User is an administrative account allowed to publish and manage content.
// Users are provisioned out-of-band and never through the public API.
type User struct {
	ID           uint   `gorm:"primaryKey"                                   json:"id"`
	Username     string `gorm:"type:varchar(80);not null;uniqueIndex"        json:"username"`
	PasswordHash string `gorm:"type:varchar(200);not null"                   json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string { return "user" }

// Stats holds row counts for each content relation
type Stats struct {
	Articles  int64 `json:"articles"`
	Documents int64 `json:"documents"`
	Tags      int64 `json:"tags"`
	Users     int64 `json:"users"`
}
