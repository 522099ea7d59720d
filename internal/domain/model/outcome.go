package model

// ImportOutcome describes what one import run changed for a project.
type ImportOutcome struct {
	ProjectID        int64
	IterationNumber  int
	CapturedOn       Date
	IterationCreated bool
	MetricCreated    bool
	MetricUpdated    bool
	Notified         bool
}

// ImportResult is the per-project record produced by a batch import. Err is
// nil on success; a notification failure leaves Outcome fully populated.
type ImportResult struct {
	ProjectID   int64
	ProjectName string
	Outcome     ImportOutcome
	Err         error
}
