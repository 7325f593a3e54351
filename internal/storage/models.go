package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// AnalysisRun is a stored profiling result: the query, the serialized
// context profile it produced, and the confidence extracted for listing.
type AnalysisRun struct {
	ID          string
	CreatedAt   time.Time
	Query       string
	ProfileJSON string
	Confidence  float64
}

// Evidence records an ingested source that contributed domain signals to
// the user profile.
type Evidence struct {
	ID        string
	CreatedAt time.Time
	Source    string
	Kind      string // "text", "html", "pdf", "url"
	Domains   string // JSON array stored as text
	Chars     int
}
