package domain

import "time"

// SavedStyle is a persisted, reusable creative direction. Analysis is the
// recipe fed back into future generation calls.
type SavedStyle struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Analysis  string    `json:"analysis"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
