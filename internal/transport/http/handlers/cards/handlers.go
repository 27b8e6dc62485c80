package cardshandler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"cardadmin/internal/auth"
	"cardadmin/internal/domain/audit"
	"cardadmin/internal/domain/cards"
	"cardadmin/internal/domain/directory"
	"cardadmin/internal/domain/views"
	"cardadmin/internal/transport/http/api"
	"cardadmin/internal/transport/http/middleware"
	"cardadmin/internal/transport/http/shared"
)

type Handler struct {
	Cards *cards.Service
	Views *views.Service
	Keys  middleware.IdempotencyKeys
	Audit audit.Recorder
}

func NewHandler(service *cards.Service, viewService *views.Service, keys middleware.IdempotencyKeys) *Handler {
	return &Handler{Cards: service, Views: viewService, Keys: keys}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/cards", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/", h.handleInventory)
		r.Get("/benefit-types", h.handleBenefitTypes)
		r.With(
			middleware.RequireRole(auth.RoleAdmin),
			middleware.Idempotent(h.Keys, "cards.company"),
		).Post("/company", h.handleCreateCompany)
		r.With(
			middleware.RequireRole(auth.RoleAdmin),
			middleware.Idempotent(h.Keys, "cards.benefit"),
		).Post("/benefit", h.handleCreateBenefit)
	})
}

func (h *Handler) handleInventory(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	inventory, err := h.Views.CardInventory(r.Context())
	if err != nil {
		slog.Error("card inventory load failed", "err", err, "requestId", requestID)
		api.Fail(w, http.StatusBadGateway, "backend_read_failed", "failed to load cards", requestID)
		return
	}
	api.Success(w, inventory, requestID)
}

func (h *Handler) handleBenefitTypes(w http.ResponseWriter, r *http.Request) {
	api.Success(w, cards.BenefitTypes, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateCompany(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var req cards.CompanyCardRequest
	if !shared.DecodeJSON(w, r, &req, false, requestID) {
		return
	}
	card, err := h.Cards.CreateCompanyCard(r.Context(), req)
	if err != nil {
		writeCreateError(w, err, requestID)
		return
	}
	masked := maskCard(card)
	audit.Log(r.Context(), h.Audit, middleware.AuditEntry(r, audit.ActionCardCreate, "card", strconv.FormatInt(card.ID, 10), masked))
	api.Created(w, masked, requestID)
}

func (h *Handler) handleCreateBenefit(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var req cards.BenefitCardRequest
	if !shared.DecodeJSON(w, r, &req, false, requestID) {
		return
	}
	card, err := h.Cards.CreateBenefitCard(r.Context(), req)
	if err != nil {
		writeCreateError(w, err, requestID)
		return
	}
	masked := maskCard(card)
	audit.Log(r.Context(), h.Audit, middleware.AuditEntry(r, audit.ActionCardCreate, "card", strconv.FormatInt(card.ID, 10), masked))
	api.Created(w, masked, requestID)
}

func maskCard(card *directory.Card) directory.Card {
	out := *card
	out.CardNo = card.MaskedNumber()
	return out
}

func writeCreateError(w http.ResponseWriter, err error, requestID string) {
	var invalid *cards.ValidationError
	switch {
	case errors.As(err, &invalid):
		issues := make([]shared.ValidationIssue, 0, len(invalid.Fields))
		for _, field := range invalid.Fields {
			issues = append(issues, shared.ValidationIssue{Field: field.Field, Reason: field.Reason})
		}
		shared.FailValidation(w, requestID, issues)
	case errors.Is(err, directory.ErrEmployeeNotFound):
		api.Fail(w, http.StatusNotFound, "employee_not_found", "employee not found", requestID)
	case errors.Is(err, cards.ErrEmployeeNotImported):
		api.Fail(w, http.StatusConflict, "employee_not_imported", "employee must be imported before a card is issued", requestID)
	default:
		slog.Error("card create failed", "err", err, "requestId", requestID)
		api.Fail(w, http.StatusInternalServerError, "card_create_failed", "failed to create card", requestID)
	}
}
