package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/softdesk/support/pkg/httputil"
	"github.com/softdesk/support/pkg/middleware"
	"github.com/softdesk/support/pkg/observability"
)

// DefaultMaxBodyBytes caps request bodies accepted by the API.
const DefaultMaxBodyBytes = 1 << 20

// RouterConfig collects the dependencies for building the API handler.
type RouterConfig struct {
	Logger          *observability.Logger
	Metrics         *observability.Metrics
	Auth            *middleware.AuthMiddleware
	AuthHandlers    *AuthHandlers
	UserHandlers    *UserHandlers
	ProjectHandlers *ProjectHandlers
	IssueHandlers   *IssueHandlers
	MaxBodyBytes    int64
}

// NewRouter builds the full API handler. Token and signup routes are open;
// everything else requires a valid access token.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	root := mux.NewRouter()

	public := root.PathPrefix("/api").Subrouter()
	cfg.AuthHandlers.RegisterRoutes(public)

	protected := root.PathPrefix("/api").Subrouter()
	protected.Use(mux.MiddlewareFunc(cfg.Auth.Handler))
	cfg.UserHandlers.RegisterRoutes(protected)
	cfg.ProjectHandlers.RegisterRoutes(protected)
	cfg.IssueHandlers.RegisterRoutes(protected)

	handler := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(cfg.Logger),
		httputil.RecoveryMiddleware(cfg.Logger),
		observability.HTTPMetricsMiddleware(cfg.Metrics),
		httputil.ContentTypeMiddleware,
		httputil.MaxBytesMiddleware(cfg.MaxBodyBytes),
	)(root)

	return otelhttp.NewHandler(handler, "softdesk-api")
}
