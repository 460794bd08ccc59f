package httpapi

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

// principal is whoever authenticated the request: a user via Basic
// credentials or the verified claims of a bearer token.
type principal struct {
	scheme string
	user   *models.User
	claims *auth.Claims
}

type principalKey struct{}

func principalFrom(ctx context.Context) *principal {
	p, _ := ctx.Value(principalKey{}).(*principal)
	return p
}

// splitAuthHeader returns the scheme and credentials of an Authorization
// header value.
func splitAuthHeader(v string) (scheme, creds string, err error) {
	scheme, creds, _ = strings.Cut(strings.TrimSpace(v), " ")
	creds = strings.TrimSpace(creds)
	if scheme == "" || creds == "" {
		return "", "", common.ErrorInvalidAuthHeaderFormat
	}
	return scheme, creds, nil
}

// decodeBasic returns the email and password of Basic credentials.
func decodeBasic(creds string) (email, password string, err error) {
	raw, err := base64.StdEncoding.DecodeString(creds)
	if err != nil {
		return "", "", common.ErrorInvalidAuthHeaderFormat
	}
	email, password, ok := strings.Cut(string(raw), ":")
	if !ok || email == "" {
		return "", "", common.ErrorInvalidAuthHeaderFormat
	}
	return email, password, nil
}

// authenticate resolves the Authorization header to a principal. A missing
// header or bad credentials answer 401, a malformed header 400, and store
// failures 500.
func (h *handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		scheme, creds, err := splitAuthHeader(header)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		var p *principal
		switch {
		case strings.EqualFold(scheme, common.AuthSchemeBasic):
			email, password, err := decodeBasic(creds)
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			user, err := h.tokens.AuthenticatePassword(r.Context(), email, password)
			if err != nil {
				h.fail(w, "authenticateBasic", err)
				return
			}
			if user != nil {
				p = &principal{scheme: common.AuthSchemeBasic, user: user}
			}

		case strings.EqualFold(scheme, common.AuthSchemeBearer):
			claims, component, err := h.verifyBearer(r.Context(), creds, r.URL.Query().Get("audience"))
			if err != nil {
				h.fail(w, component, err)
				return
			}
			if claims != nil {
				p = &principal{scheme: common.AuthSchemeBearer, claims: claims}
			}
		}

		if p == nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	})
}

// verifyBearer accepts either token type. It returns nil claims for any
// token that fails verification and an error only for store failures,
// together with the component to blame.
func (h *handler) verifyBearer(ctx context.Context, token, audience string) (*auth.Claims, string, error) {
	claims, err := h.tokens.VerifyAccessToken(ctx, token, audience)
	if err == nil {
		return claims, "", nil
	}
	if services.ReasonOf(err) != services.ReasonNotAccessToken {
		return nil, "", nil
	}

	claims, err = h.tokens.VerifyRefreshToken(ctx, token, audience)
	if err == nil {
		return claims, "", nil
	}
	var f *services.Failure
	if errors.As(err, &f) {
		return nil, "", nil
	}
	return nil, "authenticateBearerRefresh", err
}
