package impersonation

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atlas-hq/atlas-console/internal/platform/httpx"
	"github.com/atlas-hq/atlas-console/internal/shared"
)

// Handler exposes the impersonation lifecycle over HTTP.
type Handler struct {
	logger  *slog.Logger
	manager *Manager
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, manager *Manager) *Handler {
	return &Handler{logger: logger, manager: manager}
}

// MountRoutes registers impersonation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.start)
	r.Post("/end", h.end)
	r.Get("/banner", h.banner)
}

type sessionResponse struct {
	SessionID       string    `json:"session_id"`
	TargetUserID    string    `json:"target_user_id"`
	TargetUserEmail string    `json:"target_user_email"`
	Reason          string    `json:"reason"`
	StartedAt       time.Time `json:"started_at"`
	ExpiresAt       time.Time `json:"expires_at"`
	Status          string    `json:"status"`
	EndedReason     string    `json:"ended_reason,omitempty"`
}

type bannerResponse struct {
	Visible          bool   `json:"visible"`
	TargetUserEmail  string `json:"target_user_email,omitempty"`
	RemainingSeconds int    `json:"remaining_seconds"`
	ExpiresAt        string `json:"expires_at,omitempty"`
	ForcedExit       bool   `json:"forced_exit"`
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	actorID := actorFromRequest(r)
	if actorID == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var input StartInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request body")
		return
	}
	sess, err := h.manager.Start(r.Context(), actorID, input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toSessionResponse(sess))
}

func (h *Handler) end(w http.ResponseWriter, r *http.Request) {
	actorID := actorFromRequest(r)
	if actorID == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	sess, err := h.manager.End(r.Context(), actorID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSessionResponse(sess))
}

func (h *Handler) banner(w http.ResponseWriter, r *http.Request) {
	actorID := actorFromRequest(r)
	if actorID == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	state := h.manager.Banner(actorID)
	resp := bannerResponse{
		Visible:          state.Visible,
		TargetUserEmail:  state.TargetUserEmail,
		RemainingSeconds: int(state.Remaining / time.Second),
		ForcedExit:       state.ForcedExit,
	}
	if !state.ExpiresAt.IsZero() {
		resp.ExpiresAt = state.ExpiresAt.Format(time.RFC3339)
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrSessionActive):
		httpx.Problem(w, http.StatusConflict, "Session Active", err.Error())
	case errors.Is(err, ErrNoSession):
		httpx.Problem(w, http.StatusNotFound, "No Session", err.Error())
	default:
		h.logger.Error("impersonation request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Upstream Error", shared.UserSafeMessage(err))
	}
}

func toSessionResponse(sess Session) sessionResponse {
	return sessionResponse{
		SessionID:       sess.ID,
		TargetUserID:    sess.TargetUserID,
		TargetUserEmail: sess.TargetUserEmail,
		Reason:          sess.Reason,
		StartedAt:       sess.StartedAt,
		ExpiresAt:       sess.ExpiresAt,
		Status:          string(sess.Status),
		EndedReason:     sess.EndedReason,
	}
}

func actorFromRequest(r *http.Request) string {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		return sess.User()
	}
	return ""
}
