// Package httphandler is the REST driving adapter for burndowns.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/focal/internal/application"
	"github.com/ericfisherdev/focal/internal/domain/model"
	"github.com/ericfisherdev/focal/internal/domain/port/driven"
	"github.com/ericfisherdev/focal/internal/presenter"
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	burndowns     *application.BurndownService
	importer      Importer
	importTimeout time.Duration
	logger        *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. importer may be
// nil, in which case the import endpoints answer 503.
func NewHandler(burndowns *application.BurndownService, importer Importer, logger *slog.Logger) *Handler {
	return &Handler{
		burndowns: burndowns,
		importer:  importer,
		logger:    logger,
	}
}

// WithImportTimeout bounds the on-demand import routes by d instead of the
// server's write timeout. A batch import waits behind any run already in
// progress, so d is usually far longer than the server-wide limit.
func (h *Handler) WithImportTimeout(d time.Duration) *Handler {
	h.importTimeout = d
	return h
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /api/v1/burndowns", h.ListBurndowns)
	mux.HandleFunc("POST /api/v1/burndowns", h.CreateBurndown)
	mux.HandleFunc("GET /api/v1/burndowns/{id}", h.GetBurndown)
	mux.HandleFunc("PUT /api/v1/burndowns/{id}", h.UpdateBurndown)
	mux.HandleFunc("DELETE /api/v1/burndowns/{id}", h.DeleteBurndown)
	mux.HandleFunc("GET /api/v1/burndowns/{id}/metrics", h.CurrentMetrics)
	mux.HandleFunc("GET /api/v1/burndowns/{id}/chart", h.Chart)
	mux.HandleFunc("GET /api/v1/burndowns/{id}/iterations/{number}/metrics", h.IterationMetrics)
	mux.HandleFunc("GET /api/v1/burndowns/{id}/history", h.History)
	mux.HandleFunc("POST /api/v1/burndowns/{id}/import", h.ImportBurndown)
	mux.HandleFunc("POST /api/v1/import", h.ImportAll)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// ListBurndowns returns every project with its current iteration summary.
func (h *Handler) ListBurndowns(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.burndowns.ListProjects(r.Context())
	if err != nil {
		h.writeServiceError(w, "list burndowns", err)
		return
	}

	resp := make([]ProjectResponse, 0, len(summaries))
	for _, s := range summaries {
		resp = append(resp, toSummaryResponse(s))
	}

	writeJSON(w, http.StatusOK, resp)
}

// CreateBurndown registers a new project.
func (h *Handler) CreateBurndown(w http.ResponseWriter, r *http.Request) {
	var req ProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	project, err := h.burndowns.CreateProject(r.Context(), req.params(nil))
	if err != nil {
		h.writeServiceError(w, "create burndown", err)
		return
	}

	writeJSON(w, http.StatusCreated, toProjectResponse(project, nil))
}

// GetBurndown returns a project with its current and previous iterations.
func (h *Handler) GetBurndown(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	overview, err := h.burndowns.Overview(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "get burndown", err)
		return
	}

	writeJSON(w, http.StatusOK, toDetailResponse(overview))
}

// UpdateBurndown edits a project's name, tracker credentials and chat settings.
func (h *Handler) UpdateBurndown(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req ProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	existing, err := h.burndowns.GetProject(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "update burndown", err)
		return
	}

	project, err := h.burndowns.UpdateProject(r.Context(), id, req.params(&existing))
	if err != nil {
		h.writeServiceError(w, "update burndown", err)
		return
	}

	writeJSON(w, http.StatusOK, toProjectResponse(project, nil))
}

// DeleteBurndown removes a project and its history.
func (h *Handler) DeleteBurndown(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.burndowns.DeleteProject(r.Context(), id); err != nil {
		h.writeServiceError(w, "delete burndown", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CurrentMetrics returns the current iteration's daily series, oldest first.
func (h *Handler) CurrentMetrics(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	overview, err := h.burndowns.Overview(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "current metrics", err)
		return
	}

	writeJSON(w, http.StatusOK, toFeedResponse(id, overview.Current, overview.Metrics))
}

// Chart returns the current iteration as chart rows.
func (h *Handler) Chart(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	overview, err := h.burndowns.Overview(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "chart", err)
		return
	}

	writeJSON(w, http.StatusOK, presenter.ChartRows(overview.Metrics))
}

// IterationMetrics returns the daily series of an iteration by number.
func (h *Handler) IterationMetrics(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil || number <= 0 {
		writeError(w, http.StatusBadRequest, "invalid iteration number")
		return
	}

	feed, err := h.burndowns.IterationMetrics(r.Context(), id, number)
	if err != nil {
		h.writeServiceError(w, "iteration metrics", err)
		return
	}

	writeJSON(w, http.StatusOK, toFeedResponse(id, &feed.Iteration, feed.Metrics))
}

// History returns every recorded day of a project across all iterations.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	metrics, err := h.burndowns.History(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "history", err)
		return
	}

	writeJSON(w, http.StatusOK, toFeedResponse(id, nil, metrics))
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// writeServiceError maps domain and port errors onto HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, driven.ErrProjectNotFound):
		writeError(w, http.StatusNotFound, "burndown not found")
	case errors.Is(err, driven.ErrIterationNotFound):
		writeError(w, http.StatusNotFound, "iteration not found")
	case errors.Is(err, model.ErrInvalidProject):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, driven.ErrDuplicateKey):
		writeError(w, http.StatusConflict, "conflicting burndown data")
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn("import did not finish in time", "op", op, "error", err)
		writeError(w, http.StatusGatewayTimeout, "import timed out")
	case errors.Is(err, driven.ErrFetch):
		h.logger.Warn("tracker fetch failed", "op", op, "error", err)
		writeError(w, http.StatusBadGateway, "tracker unavailable")
	default:
		h.logger.Error("request failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// pathID parses the {id} path value, writing a 400 when it is not a
// positive integer.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid burndown id")
		return 0, false
	}
	return id, true
}
