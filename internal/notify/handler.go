package notify

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atlas-hq/atlas-console/internal/platform/httpx"
	"github.com/atlas-hq/atlas-console/internal/shared"
)

// Handler drains notification queues for the console UI.
type Handler struct {
	center *Center
}

// NewHandler builds a Handler.
func NewHandler(center *Center) *Handler {
	return &Handler{center: center}
}

// MountRoutes registers the notifications endpoint.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.drain)
}

type drainResponse struct {
	Messages []Message `json:"messages"`
}

func (h *Handler) drain(w http.ResponseWriter, r *http.Request) {
	actorID := shared.ActorFromContext(r.Context())
	if actorID == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	msgs := h.center.Drain(actorID)
	if msgs == nil {
		msgs = []Message{}
	}
	httpx.JSON(w, http.StatusOK, drainResponse{Messages: msgs})
}
