package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"kanakku/internal/core"
)

// Identity headers set by the authenticating proxy in front of the API.
const (
	HeaderAuthUID    = "X-Auth-UID"
	HeaderAuthEmail  = "X-Auth-Email"
	HeaderAuthSecret = "X-Auth-Secret"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// identity returns the uid and email asserted by the proxy. When a shared
// secret is configured the request must carry it.
func identity(r *http.Request, secret string) (uid, email string, err error) {
	const op = "http.identity"
	if secret != "" {
		got := r.Header.Get(HeaderAuthSecret)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			return "", "", core.Unauthorizedf(op, "request did not pass through the identity proxy")
		}
	}
	uid = sanitizeInput(r.Header.Get(HeaderAuthUID))
	if uid == "" {
		return "", "", core.Unauthorizedf(op, "not signed in")
	}
	return uid, sanitizeInput(r.Header.Get(HeaderAuthEmail)), nil
}
