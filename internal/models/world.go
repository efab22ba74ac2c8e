package models

import (
	"time"

	"github.com/google/uuid"
)

// World is a tenant (one virtual event), resolved from the request host.
type World struct {
	ID                 uuid.UUID `json:"id"`
	Domain             string    `json:"domain"`
	Title              string    `json:"title"`
	Timezone           string    `json:"timezone"`
	JWTSecret          string    `json:"-"`
	JWTIssuer          string    `json:"-"`
	JWTAudience        string    `json:"-"`
	DefaultPermissions []string  `json:"-"`
	CreatedAt          time.Time `json:"created_at"`
}

// Location returns the world's time zone, UTC when unset.
func (w *World) Location() (*time.Location, error) {
	if w.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(w.Timezone)
}
