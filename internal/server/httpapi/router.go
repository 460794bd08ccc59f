// Package httpapi exposes registration and the token endpoints over HTTP.
//
//	POST   /users/register     create an account
//	POST   /auth/token         Basic credentials or a refresh token -> new pair
//	GET    /auth/token/verify  Bearer access or refresh token -> its claims
//	DELETE /auth/token         revoke a refresh token
//	GET    /metrics, /healthz
package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/gophauth/internal/server/events"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Deps are the collaborators of the HTTP surface. Metrics and State are
// optional.
type Deps struct {
	Tokens  *services.TokenAuthority
	Users   *services.UserService
	Emitter *events.Emitter
	Metrics *Metrics
	State   func() string
}

type handler struct {
	tokens *services.TokenAuthority
	users  *services.UserService
	em     *events.Emitter
	state  func() string
}

func NewRouter(d Deps) http.Handler {
	h := &handler{tokens: d.Tokens, users: d.Users, em: d.Emitter, state: d.State}
	if h.em == nil {
		h.em = (*events.Bus)(nil).Emitter("", "http")
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Get("/healthz", h.health)
	r.Post("/users/register", h.register)

	r.Route("/auth/token", func(r chi.Router) {
		r.Use(h.authenticate)
		r.Post("/", h.issue)
		r.Delete("/", h.revoke)
		r.Get("/verify", h.verify)
	})

	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	state := "unknown"
	if h.state != nil {
		state = h.state()
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "state": state})
}

// fail publishes err with the failing handler as component and answers 500
// without detail.
func (h *handler) fail(w http.ResponseWriter, component string, err error) {
	h.em.Component(component).Fail(err, nil)
	writeJSON(w, http.StatusInternalServerError, failedResponse{
		Status: statusFailed,
		Errors: []FieldError{{Name: "server", Message: "internal error"}},
	})
}
