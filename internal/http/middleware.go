package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/logging"
)

// AdminSecretHeader carries the shared administrative secret. Requests
// without it run as regular principals.
const AdminSecretHeader = "X-Admin-Secret"

var errBadAdminSecret = errors.New("invalid administrative secret")

// AdminTagger resolves the acting principal from the administrative secret
// header. The configured secret is kept only as a bcrypt hash; a present but
// wrong secret is rejected outright rather than downgraded.
func AdminTagger(adminSecretHash []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := application.Principal{}

			if secret := strings.TrimSpace(r.Header.Get(AdminSecretHeader)); secret != "" {
				if len(adminSecretHash) == 0 || bcrypt.CompareHashAndPassword(adminSecretHash, []byte(secret)) != nil {
					responder.writeError(r.Context(), w, http.StatusForbidden, codeForbidden, errBadAdminSecret)
					return
				}
				principal.IsAdmin = true
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger attaches a request scoped logger to the context and logs the
// request lifecycle.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	var counter atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := counter.Add(1)
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := logging.ContextWithLogger(r.Context(), logger)
			start := time.Now()
			logger.InfoContext(ctx, "request started")
			next.ServeHTTP(w, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "duration", time.Since(start))
		})
	}
}
