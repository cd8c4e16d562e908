package models

import (
	"time"

	"gorm.io/datatypes"
)

// SyncEntry is a durably deferred request payload awaiting replay.
// The tag is the primary key: enqueueing the same tag twice overwrites the
// previous unsent payload (last-write-wins, one pending entry per tag).
type SyncEntry struct {
	Tag        string         `gorm:"primaryKey;size:128" json:"tag"`
	Data       datatypes.JSON `json:"data"`
	EnqueuedAt time.Time      `gorm:"index" json:"enqueued_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
