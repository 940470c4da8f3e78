package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/atlas-hq/atlas-console/internal/audit/http"
	"github.com/atlas-hq/atlas-console/internal/directory"
	"github.com/atlas-hq/atlas-console/internal/impersonation"
	"github.com/atlas-hq/atlas-console/internal/notify"
	"github.com/atlas-hq/atlas-console/internal/observability"
	"github.com/atlas-hq/atlas-console/internal/platform/httpx"
	"github.com/atlas-hq/atlas-console/internal/shared"
	"github.com/atlas-hq/atlas-console/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger               *slog.Logger
	Config               *Config
	SessionManager       *shared.SessionManager
	CSRFManager          *shared.CSRFManager
	DirectoryHandler     *directory.Handler
	ImpersonationHandler *impersonation.Handler
	AuditHandler         *audithttp.Handler
	NotifyHandler        *notify.Handler
	JobHandler           *jobs.Handler
	Metrics              *observability.Metrics
}

// NewRouter constructs the chi.Router with console defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Session bootstrap for the operator UI: identifies the actor and hands
	// out the CSRF token used on subsequent mutating requests.
	r.Get("/session", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		csrfToken, err := params.CSRFManager.EnsureToken(r.Context(), sess)
		if err != nil {
			params.Logger.Error("ensure csrf token", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{
			"actor_id":   sess.User(),
			"csrf_token": csrfToken,
		})
	})

	r.Route("/directory", params.DirectoryHandler.MountRoutes)
	r.Route("/impersonation", params.ImpersonationHandler.MountRoutes)
	if params.AuditHandler != nil {
		r.Route("/audit", params.AuditHandler.MountRoutes)
	}
	r.Route("/notifications", params.NotifyHandler.MountRoutes)
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	return r
}
