package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/bookkeeper/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         logging.Logger
	Users          *UsersHandler
	Books          *BooksHandler
	Verifier       TokenVerifier
	Metrics        *Metrics
	RequestTimeout time.Duration
	Production     bool
	// Ping backs /healthz; nil means always healthy.
	Ping func(ctx context.Context) error
}

// NewRouter constructs the chi router with the full middleware stack.
func NewRouter(p RouterParams) http.Handler {
	logger := p.Logger
	if logger == nil {
		logger = logging.Nop{}
	}
	timeout := 30 * time.Second
	if p.RequestTimeout > 0 {
		timeout = p.RequestTimeout
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		requestLogger(logger),
		middleware.Recoverer,
		p.Metrics.Middleware,
		middleware.Timeout(timeout),
		secureHeaders(logger, p.Production),
	)

	authn := Authenticator(p.Verifier, p.Metrics)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		sendResponse(w, http.StatusNotFound, "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		sendResponse(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
	})

	r.Get("/healthz", healthz(p.Ping))
	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", p.Metrics.Handler())
	}
	r.Get("/api-docs", serveDocs)
	r.Get("/api-docs/openapi.yaml", serveOpenAPI)

	r.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			p.Users.MountRoutes(r, authn)
		})
		p.Users.MountSessionRoutes(r, authn)
		r.Route("/books", func(r chi.Router) {
			p.Books.MountRoutes(r, authn)
		})
	})

	return r
}

func healthz(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				sendResponse(w, http.StatusServiceUnavailable, "Database unavailable", nil)
				return
			}
		}
		sendResponse(w, http.StatusOK, "OK", map[string]string{"status": "ok"})
	}
}
