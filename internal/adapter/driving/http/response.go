package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/focal/internal/application"
	"github.com/ericfisherdev/focal/internal/domain/model"
	"github.com/ericfisherdev/focal/internal/presenter"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// ProjectRequest is the JSON body for creating or editing a burndown. On
// edit, a nil token keeps the stored value and an empty one clears it.
type ProjectRequest struct {
	Name              string  `json:"name"`
	TrackerProjectID  int64   `json:"tracker_project_id"`
	TrackerToken      *string `json:"tracker_token"`
	CampfireSubdomain string  `json:"campfire_subdomain"`
	CampfireToken     *string `json:"campfire_token"`
	CampfireRoomID    string  `json:"campfire_room_id"`
}

// params merges the request over the stored project, if any.
func (req ProjectRequest) params(existing *model.Project) model.ProjectParams {
	p := model.ProjectParams{
		Name:    req.Name,
		Tracker: model.TrackerCredentials{ProjectID: req.TrackerProjectID},
		Chat:    model.ChatSettings{Subdomain: req.CampfireSubdomain, RoomID: req.CampfireRoomID},
	}
	if existing != nil {
		p.Tracker.Token = existing.Tracker.Token
		p.Chat.Token = existing.Chat.Token
	}
	if req.TrackerToken != nil {
		p.Tracker.Token = *req.TrackerToken
	}
	if req.CampfireToken != nil {
		p.Chat.Token = *req.CampfireToken
	}
	return p
}

// ProjectResponse is the JSON representation of a burndown. Tokens are
// reported only by presence.
type ProjectResponse struct {
	ID                  int64                     `json:"id"`
	Name                string                    `json:"name"`
	TrackerProjectID    int64                     `json:"tracker_project_id"`
	HasTrackerToken     bool                      `json:"has_tracker_token"`
	UTCOffset           int                       `json:"utc_offset"`
	CampfireSubdomain   string                    `json:"campfire_subdomain"`
	CampfireRoomID      string                    `json:"campfire_room_id"`
	NotificationEnabled bool                      `json:"notification_enabled"`
	Current             presenter.BurndownSummary `json:"current"`
	Latest              *presenter.DayRecord      `json:"latest,omitempty"`
	CreatedAt           string                    `json:"created_at"`
	UpdatedAt           string                    `json:"updated_at"`
}

// ProjectDetailResponse adds the iteration history to ProjectResponse.
type ProjectDetailResponse struct {
	ProjectResponse
	PreviousIterations []IterationResponse `json:"previous_iterations"`
}

// IterationResponse is the JSON representation of an iteration.
type IterationResponse struct {
	Number   int    `json:"number"`
	StartOn  string `json:"start_on"`
	FinishOn string `json:"finish_on"`
}

// FeedResponse is the per-day series of one iteration.
type FeedResponse struct {
	ProjectID int64                 `json:"project_id"`
	Iteration *IterationResponse    `json:"iteration"`
	Days      []presenter.DayRecord `json:"days"`
}

// OutcomeResponse is the JSON representation of one import run.
type OutcomeResponse struct {
	ProjectID        int64  `json:"project_id"`
	IterationNumber  int    `json:"iteration_number"`
	CapturedOn       string `json:"captured_on"`
	IterationCreated bool   `json:"iteration_created"`
	MetricCreated    bool   `json:"metric_created"`
	MetricUpdated    bool   `json:"metric_updated"`
	Notified         bool   `json:"notified"`
	NotifyError      string `json:"notify_error,omitempty"`
}

// BatchResultResponse is one project's entry in a batch import response.
type BatchResultResponse struct {
	ProjectID   int64            `json:"project_id"`
	ProjectName string           `json:"project_name"`
	Outcome     *OutcomeResponse `json:"outcome,omitempty"`
	Error       string           `json:"error,omitempty"`
}

func toProjectResponse(p model.Project, iterations []model.Iteration) ProjectResponse {
	return ProjectResponse{
		ID:                  p.ID,
		Name:                p.Name,
		TrackerProjectID:    p.Tracker.ProjectID,
		HasTrackerToken:     p.Tracker.Token != "",
		UTCOffset:           p.UTCOffset,
		CampfireSubdomain:   p.Chat.Subdomain,
		CampfireRoomID:      p.Chat.RoomID,
		NotificationEnabled: p.NotificationEnabled(),
		Current:             presenter.Summarize(iterations),
		CreatedAt:           formatTime(p.CreatedAt),
		UpdatedAt:           formatTime(p.UpdatedAt),
	}
}

func toSummaryResponse(s application.ProjectSummary) ProjectResponse {
	var iterations []model.Iteration
	if s.Current != nil {
		iterations = []model.Iteration{*s.Current}
	}

	resp := toProjectResponse(s.Project, iterations)
	if s.Latest != nil {
		day := presenter.Series([]model.Metric{*s.Latest})[0]
		resp.Latest = &day
	}
	return resp
}

func toDetailResponse(o *application.BurndownOverview) ProjectDetailResponse {
	iterations := make([]model.Iteration, 0, len(o.Previous)+1)
	if o.Current != nil {
		iterations = append(iterations, *o.Current)
	}
	iterations = append(iterations, o.Previous...)

	previous := make([]IterationResponse, 0, len(o.Previous))
	for _, it := range o.Previous {
		previous = append(previous, toIterationResponse(it))
	}

	return ProjectDetailResponse{
		ProjectResponse:    toProjectResponse(o.Project, iterations),
		PreviousIterations: previous,
	}
}

func toIterationResponse(it model.Iteration) IterationResponse {
	return IterationResponse{
		Number:   it.Number,
		StartOn:  it.StartOn(),
		FinishOn: it.FinishOn(),
	}
}

func toFeedResponse(projectID int64, it *model.Iteration, metrics []model.Metric) FeedResponse {
	resp := FeedResponse{
		ProjectID: projectID,
		Days:      presenter.Series(metrics),
	}
	if it != nil {
		ir := toIterationResponse(*it)
		resp.Iteration = &ir
	}
	return resp
}

func toOutcomeResponse(o model.ImportOutcome) OutcomeResponse {
	resp := OutcomeResponse{
		ProjectID:        o.ProjectID,
		IterationNumber:  o.IterationNumber,
		IterationCreated: o.IterationCreated,
		MetricCreated:    o.MetricCreated,
		MetricUpdated:    o.MetricUpdated,
		Notified:         o.Notified,
	}
	if !o.CapturedOn.IsZero() {
		resp.CapturedOn = o.CapturedOn.String()
	}
	return resp
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
