package httpapi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// requireAdmin guards operator endpoints with the static admin token from
// configuration. An empty token disables those endpoints entirely.
func (a *API) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.gate.AdminToken == "" {
			writeError(w, r, http.StatusServiceUnavailable, "admin API is not configured")
			return
		}
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="coursegate"`)
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(a.gate.AdminToken)) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="coursegate"`)
			writeError(w, r, http.StatusForbidden, "invalid admin token")
			return
		}
		next(w, r)
	}
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
