package model

import "time"

// Image represents a stored image file. Its Filename is the sanitized name and doubles as its identity.
type Image struct {
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
