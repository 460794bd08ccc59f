package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

func isRefresh(p *principal) bool {
	return p.claims != nil && p.claims.Type == common.TokenTypeRefresh
}

// issue answers Basic credentials with a fresh pair and a refresh token with
// a rotated pair. An access token is not enough to mint tokens.
func (h *handler) issue(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())

	var (
		pair *services.TokenPair
		err  error
	)
	switch {
	case p.user != nil:
		pair, err = h.tokens.IssueTokenPair(r.Context(), p.user.Email)
	case isRefresh(p):
		pair, err = h.tokens.Rotate(r.Context(), p.claims)
	default:
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if err != nil {
		// Lost a race for the same refresh token.
		if services.ReasonOf(err) == services.ReasonNotFound {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		h.fail(w, "tokenRouter POST", err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		Status:       statusOK,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *handler) revoke(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	if !isRefresh(p) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if err := h.tokens.Revoke(r.Context(), p.claims); err != nil {
		if services.ReasonOf(err) == services.ReasonNotFound {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		h.fail(w, "tokenRouter DELETE", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) verify(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	if p.claims == nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	resp := payloadResponse{Status: statusOK}
	if p.claims.Type == common.TokenTypeRefresh {
		resp.RefreshToken = p.claims
	} else {
		resp.AccessToken = p.claims
	}
	writeJSON(w, http.StatusOK, resp)
}
