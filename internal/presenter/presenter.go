// Package presenter turns stored burndown history into the shapes consumed by
// charts and API clients. Every function is pure.
package presenter

import (
	"sort"

	"github.com/ericfisherdev/focal/internal/domain/model"
)

// ChartHeader is the first row returned by ChartRows.
var ChartHeader = []any{"Day", "Unstarted", "Started", "Finished", "Delivered", "Accepted", "Rejected"}

// chartDayLayout renders "Mon  3" style labels.
const chartDayLayout = "Mon _2"

// DayRecord is one day of an iteration's burndown.
type DayRecord struct {
	Date      string `json:"date"`
	Unstarted int    `json:"unstarted"`
	Started   int    `json:"started"`
	Finished  int    `json:"finished"`
	Delivered int    `json:"delivered"`
	Accepted  int    `json:"accepted"`
	Rejected  int    `json:"rejected"`
}

// BurndownSummary describes a project's current iteration. All fields are
// nil when the project has not been imported yet.
type BurndownSummary struct {
	IterationNumber *int    `json:"iteration_number"`
	StartOn         *string `json:"start_on"`
	FinishOn        *string `json:"finish_on"`
}

// Series returns one record per metric, oldest first.
func Series(metrics []model.Metric) []DayRecord {
	sorted := byDay(metrics)

	out := make([]DayRecord, 0, len(sorted))
	for _, m := range sorted {
		c := m.Counters
		out = append(out, DayRecord{
			Date:      m.CapturedOn.String(),
			Unstarted: c.Unstarted,
			Started:   c.Started,
			Finished:  c.Finished,
			Delivered: c.Delivered,
			Accepted:  c.Accepted,
			Rejected:  c.Rejected,
		})
	}
	return out
}

// ChartRows returns ChartHeader followed by one row per day, oldest first.
func ChartRows(metrics []model.Metric) [][]any {
	sorted := byDay(metrics)

	rows := make([][]any, 0, len(sorted)+1)
	rows = append(rows, ChartHeader)
	for _, m := range sorted {
		c := m.Counters
		rows = append(rows, []any{
			m.CapturedOn.Time().Format(chartDayLayout),
			c.Unstarted, c.Started, c.Finished, c.Delivered, c.Accepted, c.Rejected,
		})
	}
	return rows
}

// Summarize describes the current iteration among iterations.
func Summarize(iterations []model.Iteration) BurndownSummary {
	current, ok := model.CurrentIteration(iterations)
	if !ok {
		return BurndownSummary{}
	}

	number := current.Number
	start := current.StartOn()
	finish := current.FinishOn()
	return BurndownSummary{
		IterationNumber: &number,
		StartOn:         &start,
		FinishOn:        &finish,
	}
}

func byDay(metrics []model.Metric) []model.Metric {
	sorted := make([]model.Metric, len(metrics))
	copy(sorted, metrics)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CapturedOn.Before(sorted[j].CapturedOn)
	})
	return sorted
}
