package domain

import "time"

// Dataset is a named collection of related tables registered in the
// metadata store.
type Dataset struct {
	ID          string
	Name        string
	Description string
	Tables      []TableMetadata
	CreatedAt   time.Time
}
