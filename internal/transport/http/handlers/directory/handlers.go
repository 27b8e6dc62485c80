package directoryhandler

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"cardadmin/internal/domain/views"
	"cardadmin/internal/transport/http/api"
	"cardadmin/internal/transport/http/middleware"
	"cardadmin/internal/transport/http/shared"
)

type Handler struct {
	Views *views.Service
	now   func() time.Time
}

func NewHandler(service *views.Service) *Handler {
	return &Handler{Views: service, now: time.Now}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/directory", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/", h.handleDirectory)
		r.Get("/teams", h.handleTeams)
		r.Get("/export.csv", h.handleExportCSV)
		r.Get("/export.pdf", h.handleExportPDF)
	})
}

func (h *Handler) handleDirectory(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	dir, err := h.Views.Directory(r.Context())
	if err != nil {
		failLoad(w, err, requestID)
		return
	}

	page := shared.ParsePagination(r, 100, 500)
	total := len(dir.Employees)
	start := min(page.Offset, total)
	end := min(start+page.Limit, total)
	dir.Employees = dir.Employees[start:end]

	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, dir, requestID)
}

func (h *Handler) handleTeams(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	browser, err := h.Views.TeamBrowser(r.Context())
	if err != nil {
		failLoad(w, err, requestID)
		return
	}
	api.Success(w, browser, requestID)
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	dir, err := h.Views.Directory(r.Context())
	if err != nil {
		failLoad(w, err, requestID)
		return
	}

	var buf bytes.Buffer
	if err := views.WriteDirectoryCSV(&buf, dir); err != nil {
		api.Fail(w, http.StatusInternalServerError, "export_failed", "failed to export directory", requestID)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=directory.csv")
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	browser, err := h.Views.TeamBrowser(r.Context())
	if err != nil {
		failLoad(w, err, requestID)
		return
	}

	generatedAt := h.now()
	var buf bytes.Buffer
	if err := views.WriteRosterPDF(&buf, browser, generatedAt); err != nil {
		slog.Error("roster export failed", "err", err, "requestId", requestID)
		api.Fail(w, http.StatusInternalServerError, "export_failed", "failed to export roster", requestID)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename="+views.RosterFileName(generatedAt))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

func failLoad(w http.ResponseWriter, err error, requestID string) {
	slog.Error("view load failed", "err", err, "requestId", requestID)
	api.Fail(w, http.StatusBadGateway, "backend_read_failed", "failed to load directory", requestID)
}
