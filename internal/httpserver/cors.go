package httpserver

import (
	"net/http"
	"strings"

	"github.com/fdg312/nutrition-planner/internal/config"
)

const (
	corsAllowMethods = "GET,POST,PATCH,DELETE,OPTIONS"
	corsAllowHeaders = "Authorization,Content-Type," + IdempotencyHeader
	// браузерный клиент читает имя файла отчёта, признак повтора и паузу после 429
	corsExposeHeaders = "Content-Disposition,Idempotent-Replayed,Retry-After"
)

type corsPolicy struct {
	origins     map[string]bool
	anyOrigin   bool
	credentials bool
}

func newCORSPolicy(cfg *config.Config) corsPolicy {
	p := corsPolicy{
		origins:     make(map[string]bool, len(cfg.CORSAllowedOrigins)),
		credentials: cfg.CORSAllowCredentials,
	}
	for _, o := range cfg.CORSAllowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			p.anyOrigin = true
			continue
		}
		p.origins[o] = true
	}
	// "*" с credentials браузер не примет, поэтому credentials отключаются
	if p.anyOrigin {
		p.credentials = false
	}
	return p
}

func (p corsPolicy) allows(origin string) bool {
	return p.anyOrigin || p.origins[origin]
}

// CORSMiddleware adds CORS headers for allowed origins and answers preflight
// requests itself. A preflight for a method the API does not serve gets 204
// without allow headers.
func CORSMiddleware(cfg *config.Config, next http.Handler) http.Handler {
	policy := newCORSPolicy(cfg)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		// ответ зависит от Origin даже когда он отклонён
		w.Header().Add("Vary", "Origin")
		allowed := policy.allows(origin)

		if r.Method == http.MethodOptions {
			requested := strings.ToUpper(strings.TrimSpace(r.Header.Get("Access-Control-Request-Method")))
			if allowed && (requested == "" || strings.Contains(","+corsAllowMethods+",", ","+requested+",")) {
				setAllowOrigin(w, policy, origin)
				w.Header().Set("Access-Control-Allow-Methods", corsAllowMethods)
				w.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
				w.Header().Set("Access-Control-Max-Age", "600")
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if allowed {
			setAllowOrigin(w, policy, origin)
			w.Header().Set("Access-Control-Expose-Headers", corsExposeHeaders)
		}
		next.ServeHTTP(w, r)
	})
}

func setAllowOrigin(w http.ResponseWriter, policy corsPolicy, origin string) {
	if policy.anyOrigin {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		return
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	if policy.credentials {
		w.Header().Set("Access-Control-Allow-Credentials", "true")
	}
}
