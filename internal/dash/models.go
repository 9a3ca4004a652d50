package dash

import (
	"errors"
	"time"
)

// State is one step of a track's conversion lifecycle.
type State string

const (
	// StateNotStarted is implicit: a track with no status record has it.
	StateNotStarted State = "not_started"
	StateProcessing State = "processing"
	StateReady      State = "ready"
	StateError      State = "error"
)

// Status is the conversion status of one track. This also matches the
// JSON shape returned by the status endpoint.
type Status struct {
	State State  `json:"status"`
	URL   string `json:"url,omitempty"`
	Error string `json:"error,omitempty"`

	// UpdatedAt is when this record was written; the sweeper uses it to
	// detect jobs stuck in processing.
	UpdatedAt time.Time `json:"-"`
}

var (
	// ErrTrackNotFound is returned for an unknown track id.
	ErrTrackNotFound = errors.New("track not found")

	// ErrNotReady is returned when a stream location is requested for a
	// track whose manifest does not exist yet.
	ErrNotReady = errors.New("track is not ready for streaming")
)
