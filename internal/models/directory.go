package models

import "time"

// DirectoryUser is one identity from the authoritative directory snapshot.
// Aliases cover known edge cases such as maiden names and legacy accounts;
// they are explicit rows owned by the directory, not a navigation graph.
type DirectoryUser struct {
	SyncedAt    time.Time `json:"synced_at"`
	Login       string    `json:"login"`
	DisplayName string    `json:"display_name"`
	Aliases     []string  `json:"aliases,omitempty"`
	ID          int64     `json:"id"`
}
