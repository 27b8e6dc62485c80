package aggregationhandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"cardadmin/internal/auth"
	"cardadmin/internal/domain/aggregation"
	"cardadmin/internal/domain/audit"
	"cardadmin/internal/domain/directory"
	"cardadmin/internal/platform/jobs"
	"cardadmin/internal/transport/http/api"
	"cardadmin/internal/transport/http/middleware"
	"cardadmin/internal/transport/http/shared"
)

type Handler struct {
	Service *aggregation.Service
	Jobs    *jobs.Service
	Store   directory.StoreAPI
	Audit   audit.Recorder
}

func NewHandler(service *aggregation.Service, jobService *jobs.Service, store directory.StoreAPI) *Handler {
	return &Handler{Service: service, Jobs: jobService, Store: store}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/aggregation", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.With(middleware.RequireRole(auth.RoleAdmin)).Post("/run", h.handleRun)
		r.With(middleware.RequireRole(auth.RoleAdmin)).Post("/jobs", h.handleEnqueue)
		r.Get("/jobs", h.handleListJobs)
		r.Get("/jobs/{jobID}", h.handleGetJob)
		r.Get("/pending", h.handlePending)
	})
}

type runPayload struct {
	Teams []string `json:"teams"`
}

// ImportRunner adapts an aggregation run to the job worker. The stored
// details leave out the nested view and keep the counts.
func ImportRunner(service *aggregation.Service, opts aggregation.Options) jobs.Runner {
	return func(ctx context.Context) (any, error) {
		result, err := service.Run(ctx, opts)
		if err != nil {
			return nil, err
		}
		return runDetails(result), nil
	}
}

func runDetails(result *aggregation.Result) map[string]any {
	return map[string]any{
		"runId":               result.RunID,
		"summary":             result.Summary,
		"newlyImported":       result.NewlyImported,
		"degradedEmployeeIds": result.DegradedEmployeeIDs,
		"warnings":            result.Warnings,
	}
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload runPayload
	if !shared.DecodeJSON(w, r, &payload, true, requestID) {
		return
	}

	// the synchronous run is recorded in job_runs next to queued ones
	var result *aggregation.Result
	jobID, _, err := h.Jobs.RunNow(r.Context(), jobs.JobAggregation, func(ctx context.Context) (any, error) {
		res, err := h.Service.Run(ctx, aggregation.Options{Teams: payload.Teams})
		if err != nil {
			return nil, err
		}
		result = res
		return runDetails(res), nil
	})
	w.Header().Set("X-Job-ID", jobID)
	if err != nil {
		writeRunError(w, err, requestID)
		return
	}
	audit.Log(r.Context(), h.Audit, middleware.AuditEntry(r, audit.ActionAggregationRun, "aggregation", result.RunID, result.Summary))
	api.Success(w, result, requestID)
}

func writeRunError(w http.ResponseWriter, err error, requestID string) {
	switch {
	case errors.Is(err, aggregation.ErrNoTeams):
		api.Fail(w, http.StatusUnprocessableEntity, "no_teams", "no teams found", requestID)
	case errors.Is(err, aggregation.ErrNoEmployees):
		api.Fail(w, http.StatusUnprocessableEntity, "no_employees", "no employees found", requestID)
	case errors.Is(err, aggregation.ErrBackendRead):
		slog.Error("aggregation read failed", "err", err, "requestId", requestID)
		api.Fail(w, http.StatusBadGateway, "backend_read_failed", "failed to read from backend", requestID)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		slog.Warn("aggregation cancelled", "err", err, "requestId", requestID)
		api.Fail(w, http.StatusServiceUnavailable, "aggregation_cancelled", "aggregation did not finish", requestID)
	default:
		slog.Error("aggregation failed", "err", err, "requestId", requestID)
		api.Fail(w, http.StatusInternalServerError, "aggregation_failed", "aggregation failed", requestID)
	}
}

func (h *Handler) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload runPayload
	if !shared.DecodeJSON(w, r, &payload, true, requestID) {
		return
	}

	jobID, err := h.Jobs.Enqueue(r.Context(), jobs.JobAggregation, ImportRunner(h.Service, aggregation.Options{Teams: payload.Teams}))
	if err != nil {
		if errors.Is(err, jobs.ErrQueueFull) {
			api.Fail(w, http.StatusServiceUnavailable, "queue_full", "job queue is full, retry later", requestID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "enqueue_failed", "failed to enqueue aggregation", requestID)
		return
	}
	api.Accepted(w, map[string]string{"jobId": jobID, "status": jobs.StatusQueued}, requestID)
}

func (h *Handler) handleListJobs(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, 20, 100)
	runs, err := h.Jobs.Recent(r.Context(), jobs.JobAggregation, page.Limit)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "job_list_failed", "failed to list jobs", requestID)
		return
	}
	if runs == nil {
		runs = []jobs.Run{}
	}
	api.Success(w, runs, requestID)
}

func (h *Handler) handleGetJob(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	jobID := chi.URLParam(r, "jobID")
	if _, err := uuid.Parse(jobID); err != nil {
		api.Fail(w, http.StatusNotFound, "not_found", "job not found", requestID)
		return
	}
	run, err := h.Jobs.Get(r.Context(), jobID)
	if errors.Is(err, jobs.ErrRunNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "job not found", requestID)
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "job_get_failed", "failed to load job", requestID)
		return
	}
	api.Success(w, run, requestID)
}

// handlePending lists HRMS users the next run could import.
func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	employees, err := h.Store.ListEmployees(r.Context(), directory.EmployeeFilter{
		IsAdded: directory.Bool(false),
		Team:    r.URL.Query().Get("team"),
	})
	if err != nil {
		slog.Error("pending employee lookup failed", "err", err, "requestId", requestID)
		api.Fail(w, http.StatusBadGateway, "backend_read_failed", "failed to read from backend", requestID)
		return
	}
	if employees == nil {
		employees = []directory.Employee{}
	}
	api.Success(w, employees, requestID)
}
