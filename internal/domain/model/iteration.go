package model

import "time"

// Iteration is one tracker iteration recorded for a project. Its boundaries
// are fixed when it is first imported.
type Iteration struct {
	ID        int64
	ProjectID int64
	Number    int
	RemoteID  int64
	StartAt   time.Time
	FinishAt  time.Time
	CreatedAt time.Time
}

// StartOn returns the start boundary as a YYYY-MM-DD string.
func (it Iteration) StartOn() string {
	return it.StartAt.UTC().Format(time.DateOnly)
}

// FinishOn returns the finish boundary as a YYYY-MM-DD string.
func (it Iteration) FinishOn() string {
	return it.FinishAt.UTC().Format(time.DateOnly)
}

// CurrentIteration returns the iteration with the highest number. The second
// result is false when iterations is empty.
func CurrentIteration(iterations []Iteration) (Iteration, bool) {
	if len(iterations) == 0 {
		return Iteration{}, false
	}

	current := iterations[0]
	for _, it := range iterations[1:] {
		if it.Number > current.Number {
			current = it
		}
	}
	return current, true
}

// PreviousIterations returns every iteration except the current one, keeping
// the input order. The input is expected in number-descending order.
func PreviousIterations(iterations []Iteration) []Iteration {
	current, ok := CurrentIteration(iterations)
	if !ok {
		return []Iteration{}
	}

	previous := make([]Iteration, 0, len(iterations)-1)
	for _, it := range iterations {
		if it.Number == current.Number {
			continue
		}
		previous = append(previous, it)
	}
	return previous
}
