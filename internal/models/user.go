package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an attendee of a world, created on first login with a token or client id.
type User struct {
	ID          uuid.UUID `json:"id"`
	WorldID     uuid.UUID `json:"world_id"`
	TokenID     string    `json:"-"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}
