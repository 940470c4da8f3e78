package directory

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atlas-hq/atlas-console/internal/platform/httpx"
	"github.com/atlas-hq/atlas-console/internal/shared"
)

// Handler manages directory endpoints for the console UI.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers directory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/users", h.listUsers)
	r.Post("/users/{id}/suspend", h.suspendUser)
	r.Post("/users/{id}/unsuspend", h.unsuspendUser)
	r.Delete("/users/{id}", h.deleteUser)
	r.Post("/users/{id}/restore", h.restoreUser)

	r.Get("/invitations", h.listInvitations)
	r.Post("/invitations", h.createInvitation)
	r.Post("/invitations/{id}/cancel", h.cancelInvitation)
	r.Post("/invitations/{id}/resend", h.resendInvitation)
	r.Delete("/invitations/{id}", h.deleteInvitation)

	r.Post("/refresh", h.refresh)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	col, err := h.service.Users(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Upstream Error", shared.UserSafeMessage(err))
		return
	}
	httpx.JSON(w, http.StatusOK, toCollectionResponse(col))
}

func (h *Handler) listInvitations(w http.ResponseWriter, r *http.Request) {
	col, err := h.service.Invitations(r.Context())
	if err != nil {
		h.logger.Error("list invitations", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Upstream Error", shared.UserSafeMessage(err))
		return
	}
	httpx.JSON(w, http.StatusOK, toCollectionResponse(col))
}

// The mutation endpoints answer 202: the edit is already visible in the
// cached collection, confirmation happens in the background.
func (h *Handler) suspendUser(w http.ResponseWriter, r *http.Request) {
	h.executeUserMutation(w, r, h.service.SuspendUser)
}

func (h *Handler) unsuspendUser(w http.ResponseWriter, r *http.Request) {
	h.executeUserMutation(w, r, h.service.UnsuspendUser)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	h.executeUserMutation(w, r, h.service.DeleteUser)
}

func (h *Handler) restoreUser(w http.ResponseWriter, r *http.Request) {
	h.executeUserMutation(w, r, h.service.RestoreUser)
}

func (h *Handler) createInvitation(w http.ResponseWriter, r *http.Request) {
	actorID := shared.ActorFromContext(r.Context())
	if actorID == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var input CreateInvitationInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request body")
		return
	}
	if err := h.validator.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.CreateInvitation(r.Context(), actorID, input)
	if err != nil {
		h.logger.Error("create invitation", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Upstream Error", shared.UserSafeMessage(err))
		return
	}
	httpx.JSON(w, http.StatusCreated, toInvitationResponse(created))
}

func (h *Handler) cancelInvitation(w http.ResponseWriter, r *http.Request) {
	h.executeInvitationMutation(w, r, h.service.CancelInvitation)
}

func (h *Handler) resendInvitation(w http.ResponseWriter, r *http.Request) {
	h.executeInvitationMutation(w, r, h.service.ResendInvitation)
}

func (h *Handler) deleteInvitation(w http.ResponseWriter, r *http.Request) {
	h.executeInvitationMutation(w, r, h.service.DeleteInvitation)
}

type refreshRequest struct {
	Key string `json:"key"`
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Key == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "collection key required")
		return
	}
	if err := h.service.Refresh(r.Context(), req.Key); err != nil {
		h.logger.Error("refresh collection", slog.String("key", req.Key), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Upstream Error", shared.UserSafeMessage(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) executeUserMutation(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, actorID, search, userID string) error) {
	actorID := shared.ActorFromContext(r.Context())
	if actorID == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	userID := chi.URLParam(r, "id")
	search := r.URL.Query().Get("search")
	if err := op(r.Context(), actorID, search, userID); err != nil {
		h.respondMutationError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) executeInvitationMutation(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, actorID, invitationID string) error) {
	actorID := shared.ActorFromContext(r.Context())
	if actorID == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	invitationID := chi.URLParam(r, "id")
	if err := op(r.Context(), actorID, invitationID); err != nil {
		h.respondMutationError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) respondMutationError(w http.ResponseWriter, err error) {
	if errors.Is(err, shared.ErrIdempotencyConflict) {
		httpx.Problem(w, http.StatusConflict, "Duplicate Request", "this change is already being applied")
		return
	}
	httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
}
