package models

import (
	"time"

	"gorm.io/datatypes"
)

// CacheObject is one stored response inside a named cache generation.
// The (generation, url) pair is the cache key; only responses observed with
// HTTP status 200 are ever stored.
type CacheObject struct {
	Generation  string         `gorm:"primaryKey;size:128" json:"generation"`
	URL         string         `gorm:"primaryKey;size:2048" json:"url"`
	Status      int            `gorm:"not null" json:"status"`
	Headers     datatypes.JSON `json:"headers"`
	Body        []byte         `gorm:"type:blob" json:"-"`
	ContentType string         `gorm:"size:256" json:"content_type"`
	Class       string         `gorm:"size:32;index" json:"class"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
