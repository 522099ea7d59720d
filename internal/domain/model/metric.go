package model

import (
	"fmt"
	"time"
)

// Counters are the six story-state tallies captured for a day.
type Counters struct {
	Unstarted int
	Started   int
	Finished  int
	Delivered int
	Accepted  int
	Rejected  int
}

// Validate rejects negative tallies.
func (c Counters) Validate() error {
	fields := []struct {
		name  string
		value int
	}{
		{"unstarted", c.Unstarted},
		{"started", c.Started},
		{"finished", c.Finished},
		{"delivered", c.Delivered},
		{"accepted", c.Accepted},
		{"rejected", c.Rejected},
	}
	for _, f := range fields {
		if f.value < 0 {
			return fmt.Errorf("%s count is negative: %d", f.name, f.value)
		}
	}
	return nil
}

// Total returns the sum of all counters.
func (c Counters) Total() int {
	return c.Unstarted + c.Started + c.Finished + c.Delivered + c.Accepted + c.Rejected
}

// Metric holds one iteration's counters for one project-local calendar day.
type Metric struct {
	ID          int64
	IterationID int64
	CapturedOn  Date
	Counters    Counters
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
