package domain

import "github.com/google/uuid"

// NewID generates a UUIDv7 string for datasets registered without an
// explicit id. v7 ids sort by creation time.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
