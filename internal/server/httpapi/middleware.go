package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/bookkeeper/internal/common"
	"github.com/dmitrijs2005/bookkeeper/internal/logging"
	"github.com/dmitrijs2005/bookkeeper/internal/server/auth"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/unrolled/secure"
)

type ctxKey string

const claimsKey ctxKey = "claims"

// TokenVerifier checks access tokens. *auth.Issuer satisfies it.
type TokenVerifier interface {
	VerifyAccessToken(token string) (auth.Claims, error)
}

// Authenticator requires a valid bearer access token. A missing token is
// answered with 401, any verification failure with 403. The token is not
// checked against the store.
func Authenticator(v TokenVerifier, m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				m.AuthEvent("access", "missing")
				sendResponse(w, http.StatusUnauthorized, "No token provided", nil)
				return
			}

			claims, err := v.VerifyAccessToken(token)
			if err != nil {
				m.AuthEvent("access", "rejected")
				sendResponse(w, http.StatusForbidden, "Token Expired/Invalid Token", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

// ContextWithClaims attaches verified claims to ctx.
func ContextWithClaims(ctx context.Context, c auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromContext returns the claims stored by Authenticator.
func ClaimsFromContext(ctx context.Context) (auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(auth.Claims)
	return c, ok
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get(common.AuthorizationHeaderName))
	if raw == "" {
		return ""
	}
	scheme, token, ok := strings.Cut(raw, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// requestLogger logs one line per request once the response is written.
func requestLogger(l logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			l.Info(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", statusOf(ww),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// secureHeaders sets the usual hardening headers via unrolled/secure.
func secureHeaders(l logging.Logger, production bool) func(http.Handler) http.Handler {
	sm := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'self'",
		SSLRedirect:           production,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         !production,
	})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := sm.Process(w, r); err != nil {
				l.Warn(r.Context(), "secure headers blocked request", "err", err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
