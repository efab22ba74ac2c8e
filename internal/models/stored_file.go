package models

import (
	"time"

	"github.com/google/uuid"
)

// StoredFile is an uploaded artifact. Content lives in the blob store under Key.
type StoredFile struct {
	ID        uuid.UUID `json:"id"`
	WorldID   uuid.UUID `json:"world_id"`
	UserID    uuid.UUID `json:"user_id"`
	Filename  string    `json:"filename"`
	Type      string    `json:"type"`
	Size      int64     `json:"size"`
	Key       string    `json:"-"`
	URL       string    `json:"url"`
	Public    bool      `json:"public"`
	CreatedAt time.Time `json:"created_at"`
}
