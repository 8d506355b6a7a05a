package middleware

import (
	"net/http"
	"strings"

	"github.com/R3E-Network/worldstore/internal/signedfetch"
)

// Headers a browser scene may send to the storage API.
var corsAllowedHeaders = strings.Join([]string{
	"Content-Type",
	"Authorization",
	TraceHeader,
	"X-Confirm-Delete-All",
	signedfetch.SignerHeader,
	signedfetch.MetadataHeader,
}, ", ")

// CORSMiddleware answers cross-origin requests from browser scenes.
type CORSMiddleware struct {
	exact    map[string]struct{}
	suffixes []string
	allowAll bool
}

// NewCORSMiddleware creates a new CORS middleware. "*" allows any origin;
// an entry starting with "." allows that domain suffix.
func NewCORSMiddleware(allowedOrigins []string) *CORSMiddleware {
	m := &CORSMiddleware{exact: make(map[string]struct{})}
	for _, origin := range allowedOrigins {
		switch {
		case origin == "*":
			m.allowAll = true
		case strings.HasPrefix(origin, "."):
			m.suffixes = append(m.suffixes, origin)
		case origin != "":
			m.exact[origin] = struct{}{}
		}
	}
	return m
}

// Handler sets CORS headers for allowed origins and short-circuits preflights.
func (m *CORSMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && m.allows(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Methods", "GET, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", corsAllowedHeaders)
			h.Set("Access-Control-Expose-Headers", TraceHeader)
			h.Set("Access-Control-Max-Age", "3600")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *CORSMiddleware) allows(origin string) bool {
	if m.allowAll {
		return true
	}
	if _, ok := m.exact[origin]; ok {
		return true
	}
	for _, suffix := range m.suffixes {
		if strings.HasSuffix(origin, suffix) {
			return true
		}
	}
	return false
}
