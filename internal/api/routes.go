package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"videoscore/internal/models"
	"videoscore/internal/throttle"
)

// Guards bundles the four throttle guards the route table wires in. Any nil
// guard is simply not applied, which keeps tests and tooling free to exercise
// routes without throttling.
type Guards struct {
	General *throttle.Guard
	Auth    *throttle.Guard
	Login   *throttle.Guard
	Heavy   *throttle.Guard
}

// RouteOption configures optional route behavior.
type RouteOption func(*mux.Router)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(r *mux.Router) {
		r.Use(otelmux.Middleware(serviceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health" &&
					r.URL.Path != "/api/v1/health" &&
					r.URL.Path != "/metrics"
			}),
		))
	}
}

// SetupRoutes configures the HTTP routes for the API. The general guard
// covers every /api/v1 route; the auth guard additionally covers the /auth
// routes, the login guard the login route, and the heavy guard the generate
// route.
func SetupRoutes(handlers *Handlers, config *models.Config, guards Guards, opts ...RouteOption) (*mux.Router, error) {
	router := mux.NewRouter()

	for _, opt := range opts {
		opt(router)
	}

	if config.Server.CORS.Enabled {
		router.Use(corsMiddleware(config.Server.CORS))
	}

	router.Use(loggingMiddleware)
	router.Use(recoveryMiddleware)

	if config.Security.MinAppVersion != "" {
		versionGate, err := minAppVersionMiddleware(config.Security.MinAppVersion)
		if err != nil {
			return nil, err
		}
		router.Use(versionGate)
	}

	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	router.HandleFunc("/api/v1/health", handlers.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	if guards.General != nil {
		api.Use(guards.General.Middleware())
	}

	authAPI := api.PathPrefix("/auth").Subrouter()
	if guards.Auth != nil {
		authAPI.Use(guards.Auth.Middleware())
	}
	authAPI.HandleFunc("/register", handlers.Register).Methods("POST")
	authAPI.Handle("/login", guarded(guards.Login, http.HandlerFunc(handlers.Login))).Methods("POST")

	api.HandleFunc("/subscription", handlers.GetSubscription).Methods("GET")
	api.HandleFunc("/subscription", handlers.UpdateSubscription).Methods("PUT")

	api.Handle("/generate", guarded(guards.Heavy, http.HandlerFunc(handlers.Generate))).Methods("POST")

	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		errorResp := models.NewErrorResponse("Method not allowed", http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(errorResp)
	})

	return router, nil
}

// guarded wraps a handler in a single guard's middleware, tolerating nil.
func guarded(g *throttle.Guard, next http.Handler) http.Handler {
	if g == nil {
		return next
	}
	return g.Middleware()(next)
}
