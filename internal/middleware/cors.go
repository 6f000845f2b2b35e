package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// CORS wraps h with cross-origin handling. allowedOrigins is "*" or a
// comma-separated list (e.g. "http://localhost:3000,http://localhost:5173").
func CORS(allowedOrigins string, h http.Handler) http.Handler {
	origins := ParseOrigins(allowedOrigins)
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: !containsWildcard(origins),
		MaxAge:           86400,
	})
	return c.Handler(h)
}

// ParseOrigins splits a comma-separated origin list.
func ParseOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(strings.TrimSpace(s), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
