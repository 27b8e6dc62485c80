package policyhandler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"cardadmin/internal/auth"
	"cardadmin/internal/domain/audit"
	"cardadmin/internal/domain/policy"
	"cardadmin/internal/transport/http/api"
	"cardadmin/internal/transport/http/middleware"
	"cardadmin/internal/transport/http/shared"
)

type Handler struct {
	Service *policy.Service
	Audit   audit.Recorder
}

func NewHandler(service *policy.Service) *Handler {
	return &Handler{Service: service}
}

// RegisterRoutes mounts the policy drafts. Every route edits or submits a
// draft, so the whole group is admin only.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/policies", func(r chi.Router) {
		r.Use(middleware.RequireRole(auth.RoleAdmin))

		r.Route("/expense", func(r chi.Router) {
			r.Post("/", h.handleNewExpensePolicy)
			r.Get("/{draftID}", h.handleGetExpensePolicy)
			r.Post("/{draftID}/teams/{team}/rules", h.handleAddExpenseRule)
			r.Put("/{draftID}/teams/{team}/rules/{ruleID}", h.handleUpdateExpenseRule)
			r.Delete("/{draftID}/teams/{team}/rules/{ruleID}", h.handleRemoveExpenseRule)
			r.Post("/{draftID}/submit", h.handleSubmitExpensePolicy)
		})

		r.Route("/card-approval", func(r chi.Router) {
			r.Post("/", h.handleNewCardApprovalFlow)
			r.Get("/{draftID}", h.handleGetCardApprovalFlow)
			r.Put("/{draftID}/limits", h.handleSetLimits)
			r.Post("/{draftID}/levels", h.handleAddLevel)
			r.Put("/{draftID}/levels/{levelID}", h.handleUpdateLevel)
			r.Delete("/{draftID}/levels/{levelID}", h.handleRemoveLevel)
			r.Post("/{draftID}/submit", h.handleSubmitCardApprovalFlow)
		})

		r.Get("/benefits", h.handleGetBenefits)
		r.Put("/benefits", h.handleUpdateBenefits)
		r.Post("/benefits/submit", h.handleSubmitBenefits)
	})
}

func writePolicyError(w http.ResponseWriter, err error, requestID string) {
	switch {
	case errors.Is(err, policy.ErrDraftNotFound):
		api.Fail(w, http.StatusNotFound, "draft_not_found", err.Error(), requestID)
	case errors.Is(err, policy.ErrRuleNotFound),
		errors.Is(err, policy.ErrLevelNotFound),
		errors.Is(err, policy.ErrTeamNotInPolicy):
		api.Fail(w, http.StatusNotFound, "not_found", err.Error(), requestID)
	case errors.Is(err, policy.ErrNoTeamsSelected):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "teams", Reason: err.Error()}})
	case errors.Is(err, policy.ErrInvalidApproverType):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "type", Reason: err.Error()}})
	default:
		slog.Error("policy request failed", "err", err, "requestId", requestID)
		api.Fail(w, http.StatusBadGateway, "backend_read_failed", "failed to load policy data", requestID)
	}
}

func actor(r *http.Request) string {
	user, _ := middleware.GetUser(r.Context())
	return user.UserID
}

// pathParam unescapes URL params so team names with spaces resolve.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if value, err := url.PathUnescape(raw); err == nil {
		return value
	}
	return raw
}

func (h *Handler) handleNewExpensePolicy(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload struct {
		Teams []string `json:"teams"`
	}
	if !shared.DecodeJSON(w, r, &payload, false, requestID) {
		return
	}
	draft, err := h.Service.NewExpensePolicy(r.Context(), payload.Teams)
	if err != nil {
		writePolicyError(w, err, requestID)
		return
	}
	api.Created(w, draft, requestID)
}

func (h *Handler) handleGetExpensePolicy(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	draft, err := h.Service.GetExpensePolicy(chi.URLParam(r, "draftID"))
	if err != nil {
		writePolicyError(w, err, requestID)
		return
	}
	api.Success(w, draft, requestID)
}

func (h *Handler) handleAddExpenseRule(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	draft, err := h.Service.AddExpenseRule(chi.URLParam(r, "draftID"), pathParam(r, "team"))
	if err != nil {
		writePolicyError(w, err, requestID)
		return
	}
	api.Created(w, draft, requestID)
}

func (h *Handler) handleUpdateExpenseRule(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var patch policy.RulePatch
	if !shared.DecodeJSON(w, r, &patch, false, requestID) {
		return
	}
	draft, err := h.Service.UpdateExpenseRule(chi.URLParam(r, "draftID"), pathParam(r, "team"), chi.URLParam(r, "ruleID"), patch)
	if err != nil {
		writePolicyError(w, err, requestID)
		return
	}
	api.Success(w, draft, requestID)
}

func (h *Handler) handleRemoveExpenseRule(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	draft, err := h.Service.RemoveExpenseRule(chi.URLParam(r, "draftID"), pathParam(r, "team"), chi.URLParam(r, "ruleID"))
	if err != nil {
		writePolicyError(w, err, requestID)
		return
	}
	api.Success(w, draft, requestID)
}

func (h *Handler) handleSubmitExpensePolicy(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	submission, err := h.Service.SubmitExpensePolicy(chi.URLParam(r, "draftID"), actor(r))
	if err != nil {
		writePolicyError(w, err, requestID)
		return
	}
	audit.Log(r.Context(), h.Audit, middleware.AuditEntry(r, audit.ActionExpensePolicySent, "expense_policy", submission.DraftID, submission.Config))
	api.Success(w, submission, requestID)
}

func (h *Handler) handleNewCardApprovalFlow(w http.ResponseWriter, r *http.Request) {
	api.Created(w, h.Service.NewCardApprovalFlow(), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetCardApprovalFlow(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	flow, err := h.Service.GetCardApprovalFlow(chi.URLParam(r, "draftID"))
	if err != nil {
		writePolicyError(w, err, requestID)
		return
	}
	api.Success(w, flow, requestID)
}

func (h *Handler) handleSetLimits(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload struct {
		MinLimit string `json:"minLimit"`
		MaxLimit string `json:"maxLimit"`
	}
	if !shared.DecodeJSON(w, r, &payload, false, requestID) {
		return
	}
	v := shared.NewValidator()
	v.Required("minLimit", payload.MinLimit, "is required")
	v.Required("maxLimit", payload.MaxLimit, "is required")
	if v.Reject(w, requestID) {
		return
	}
	flow, err := h.Service.SetCardApprovalLimits(chi.URLParam(r, "draftID"), payload.MinLimit, payload.MaxLimit)
	if err != nil {
		writePolicyError(w, err, requestID)
		return
	}
	api.Success(w, flow, requestID)
}

func (h *Handler) handleAddLevel(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	flow, err := h.Service.AddApprovalLevel(chi.URLParam(r, "draftID"))
	if err != nil {
		writePolicyError(w, err, requestID)
		return
	}
	api.Created(w, flow, requestID)
}

func (h *Handler) handleUpdateLevel(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var patch policy.LevelPatch
	if !shared.DecodeJSON(w, r, &patch, false, requestID) {
		return
	}
	flow, err := h.Service.UpdateApprovalLevel(chi.URLParam(r, "draftID"), chi.URLParam(r, "levelID"), patch)
	if err != nil {
		writePolicyError(w, err, requestID)
		return
	}
	api.Success(w, flow, requestID)
}

func (h *Handler) handleRemoveLevel(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	flow, err := h.Service.RemoveApprovalLevel(chi.URLParam(r, "draftID"), chi.URLParam(r, "levelID"))
	if err != nil {
		writePolicyError(w, err, requestID)
		return
	}
	api.Success(w, flow, requestID)
}

func (h *Handler) handleSubmitCardApprovalFlow(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	submission, err := h.Service.SubmitCardApprovalFlow(chi.URLParam(r, "draftID"), actor(r))
	if err != nil {
		writePolicyError(w, err, requestID)
		return
	}
	audit.Log(r.Context(), h.Audit, middleware.AuditEntry(r, audit.ActionCardApprovalSent, "card_approval_flow", submission.DraftID, submission.Config))
	api.Success(w, submission, requestID)
}

func (h *Handler) handleGetBenefits(w http.ResponseWriter, r *http.Request) {
	api.Success(w, h.Service.BenefitsAutomation(actor(r)), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateBenefits(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var cfg policy.BenefitsAutomation
	if !shared.DecodeJSON(w, r, &cfg, false, requestID) {
		return
	}
	api.Success(w, h.Service.UpdateBenefitsAutomation(actor(r), cfg), requestID)
}

func (h *Handler) handleSubmitBenefits(w http.ResponseWriter, r *http.Request) {
	submission := h.Service.SubmitBenefitsAutomation(actor(r))
	audit.Log(r.Context(), h.Audit, middleware.AuditEntry(r, audit.ActionBenefitsPolicySent, "benefits_automation", submission.DraftID, submission.Config))
	api.Success(w, submission, middleware.GetRequestID(r.Context()))
}
