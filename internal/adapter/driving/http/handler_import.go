package httphandler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ericfisherdev/focal/internal/domain/model"
	"github.com/ericfisherdev/focal/internal/domain/port/driven"
)

// Importer runs imports on demand. The scheduler satisfies it so manual and
// scheduled runs never overlap.
type Importer interface {
	RefreshProject(ctx context.Context, projectID int64) (model.ImportOutcome, error)
	RefreshAll(ctx context.Context) ([]model.ImportResult, error)
}

// ImportBurndown force-updates one project and reports what changed. A
// failed notification still answers 200 with notify_error set.
func (h *Handler) ImportBurndown(w http.ResponseWriter, r *http.Request) {
	if h.importer == nil {
		writeError(w, http.StatusServiceUnavailable, "importer not configured")
		return
	}

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.importContext(w, r)
	defer cancel()

	outcome, err := h.importer.RefreshProject(ctx, id)
	if err != nil && !errors.Is(err, driven.ErrNotify) {
		h.writeServiceError(w, "import burndown", err)
		return
	}

	resp := toOutcomeResponse(outcome)
	if err != nil {
		h.logger.Warn("burndown notification failed", "project_id", id, "error", err)
		resp.NotifyError = err.Error()
	}

	writeJSON(w, http.StatusOK, resp)
}

// ImportAll runs the batch import immediately and returns one entry per project.
func (h *Handler) ImportAll(w http.ResponseWriter, r *http.Request) {
	if h.importer == nil {
		writeError(w, http.StatusServiceUnavailable, "importer not configured")
		return
	}

	ctx, cancel := h.importContext(w, r)
	defer cancel()

	results, err := h.importer.RefreshAll(ctx)
	if err != nil {
		h.writeServiceError(w, "import all", err)
		return
	}

	resp := make([]BatchResultResponse, 0, len(results))
	for _, res := range results {
		entry := BatchResultResponse{ProjectID: res.ProjectID, ProjectName: res.ProjectName}

		switch {
		case res.Err == nil:
			outcome := toOutcomeResponse(res.Outcome)
			entry.Outcome = &outcome
		case errors.Is(res.Err, driven.ErrNotify):
			outcome := toOutcomeResponse(res.Outcome)
			outcome.NotifyError = res.Err.Error()
			entry.Outcome = &outcome
		default:
			entry.Error = res.Err.Error()
		}

		resp = append(resp, entry)
	}

	writeJSON(w, http.StatusOK, resp)
}

// importContext moves the connection's write deadline to the import timeout
// and bounds the wait by the same duration, leaving a second to write the
// response.
func (h *Handler) importContext(w http.ResponseWriter, r *http.Request) (context.Context, context.CancelFunc) {
	if h.importTimeout <= 0 {
		return context.WithCancel(r.Context())
	}

	deadline := time.Now().Add(h.importTimeout)
	if err := http.NewResponseController(w).SetWriteDeadline(deadline.Add(time.Second)); err != nil {
		h.logger.Debug("write deadline not extended", "path", r.URL.Path, "error", err)
	}

	return context.WithDeadline(r.Context(), deadline)
}
