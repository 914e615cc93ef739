package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"civicconnect.org/internal/auth"
	"civicconnect.org/internal/media"
	"civicconnect.org/internal/obs"
	"civicconnect.org/internal/report"
	"civicconnect.org/internal/stream"
)

const serviceName = "civicconnect-api"

// ReadyProbe checks that the backing database answers.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

type readinessChecker interface {
	Check(ctx context.Context) error
}

// Deps wires the API to its backends. Media and MediaFiles are optional.
type Deps struct {
	Reports    report.Store
	Auth       *auth.Service
	Hub        *stream.Hub
	Media      media.Storage
	MediaFiles *media.Memory
	Ready      readinessChecker
	Version    string
	Location   *time.Location
	Logger     zerolog.Logger
	RateBurst  int
	RatePerSec int
}

// API is the HTTP surface of the backend.
type API struct {
	reports    report.Store
	auth       *auth.Service
	hub        *stream.Hub
	media      media.Storage
	mediaFiles *media.Memory
	ready      readinessChecker
	version    string
	loc        *time.Location
	log        zerolog.Logger
	now        func() time.Time

	rateBurst  int
	ratePerSec int
}

func New(d Deps) *API {
	a := &API{
		reports:    d.Reports,
		auth:       d.Auth,
		hub:        d.Hub,
		media:      d.Media,
		mediaFiles: d.MediaFiles,
		ready:      d.Ready,
		version:    d.Version,
		loc:        d.Location,
		log:        d.Logger,
		now:        time.Now,
		rateBurst:  d.RateBurst,
		ratePerSec: d.RatePerSec,
	}
	if a.ready == nil {
		a.ready = ReadyProbe{}
	}
	if a.loc == nil {
		a.loc = time.UTC
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 50
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 20
	}
	return a
}

// Handler assembles the router and the middleware chain.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Handle("/metrics", obs.Handler())
	if a.mediaFiles != nil {
		r.Get("/media/*", a.serveMedia)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(a.withAuth)
		r.Get("/info", a.Info)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", a.handleSignUp)
			r.Post("/signin", a.handleSignIn)
			r.Post("/federated", a.handleFederated)
			r.With(a.RequireUser).Post("/signout", a.handleSignOut)
			r.With(a.RequireUser).Get("/user", a.handleCurrentUser)
		})

		r.Route("/roles", func(r chi.Router) {
			r.With(a.RequireUser).Get("/me", a.handleMyRole)
			r.With(a.RequireAdmin).Put("/{userID}", a.handleAssignRole)
		})

		r.Get("/profiles", a.handleProfiles)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/", a.handleListReports)
			r.Post("/", a.handleCreateReport)
			r.Get("/{id}", a.handleGetReport)
			r.With(a.RequireAdmin).Patch("/{id}/status", a.handleUpdateStatus)
			r.With(a.RequireAdmin).Patch("/{id}", a.handlePatchReport)
		})

		r.With(a.RequireUser).Post("/media", a.handleUpload)

		r.Get("/realtime/reports", a.Stream)
		r.Get("/realtime/ws", a.StreamWS)
	})

	var h http.Handler = r
	h = MaxBodyBytes(h, maxUploadBytes)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.ready.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    a.now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
