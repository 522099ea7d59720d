package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidSnapshot is returned when a remote snapshot is malformed.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// maxUTCOffset bounds real-world zone offsets (UTC-12 .. UTC+14).
const maxUTCOffset = 14 * 60 * 60

// Snapshot is the remote tracker's current view of one iteration.
type Snapshot struct {
	Number            int
	RemoteIterationID int64
	StartAt           time.Time
	FinishAt          time.Time
	UTCOffsetSeconds  int
	Counters          Counters
}

// Validate checks that the snapshot is complete enough to import.
func (s Snapshot) Validate() error {
	switch {
	case s.Number <= 0:
		return fmt.Errorf("%w: iteration number must be positive, got %d", ErrInvalidSnapshot, s.Number)
	case s.RemoteIterationID <= 0:
		return fmt.Errorf("%w: remote iteration id must be positive, got %d", ErrInvalidSnapshot, s.RemoteIterationID)
	case s.StartAt.IsZero() || s.FinishAt.IsZero():
		return fmt.Errorf("%w: iteration boundaries are missing", ErrInvalidSnapshot)
	case s.FinishAt.Before(s.StartAt):
		return fmt.Errorf("%w: iteration finishes before it starts", ErrInvalidSnapshot)
	case s.UTCOffsetSeconds > maxUTCOffset || s.UTCOffsetSeconds < -maxUTCOffset:
		return fmt.Errorf("%w: utc offset %ds out of range", ErrInvalidSnapshot, s.UTCOffsetSeconds)
	}

	if err := s.Counters.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	return nil
}

// Iteration returns the iteration record described by the snapshot.
func (s Snapshot) Iteration(projectID int64) Iteration {
	return Iteration{
		ProjectID: projectID,
		Number:    s.Number,
		RemoteID:  s.RemoteIterationID,
		StartAt:   s.StartAt.UTC(),
		FinishAt:  s.FinishAt.UTC(),
	}
}
