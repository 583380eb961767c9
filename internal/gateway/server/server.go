// Package server provides the HTTP control surface of the gateway. It
// implements a RESTful API server with session management, version
// information, and health check endpoints. The package supports CORS
// handling and middleware integration for logging and error handling.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/waygate/waygate/internal/common/httpx"
	"github.com/waygate/waygate/internal/common/logtrace"
	"github.com/waygate/waygate/internal/common/middleware"
	"github.com/waygate/waygate/internal/gateway/config"
	"github.com/waygate/waygate/internal/gateway/session"
)

// requestTimeout bounds end-to-end handling of a single control request.
const requestTimeout = 60 * time.Second

// GatewayServer provides the main HTTP server for the gateway.
// Manages routing, middleware, and endpoint handling for session operations.
type GatewayServer struct {
	Router *chi.Mux // HTTP router for request handling
}

// CreateNewServer creates a new GatewayServer instance.
// Returns the server instance and any error encountered during creation.
func CreateNewServer() (*GatewayServer, error) {
	s := &GatewayServer{}
	s.Router = chi.NewRouter()
	return s, nil
}

// MountHandlers sets up all HTTP routes and middleware for the server.
// Configures logging, panic handling, CORS, and resource endpoints.
func (s *GatewayServer) MountHandlers() {
	s.Router.Use(middleware.RequestLogger)
	s.Router.Use(middleware.PanicHandler)
	s.Router.Use(middleware.SetTimeout(requestTimeout))
	if config.Config().HandleCORS {
		s.Router.Use(s.HandleCORS)
	}
	s.mountResourceHandlers(s.Router)
	if logtrace.IsTraceEnabled() {
		fmt.Println("Routes in gateway router")
		walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
			fmt.Printf("%s %s\n", method, route)
			return nil
		}
		if err := chi.Walk(s.Router, walkFunc); err != nil {
			log.Error().Err(err).Msg("Error walking router")
		}
	}
}

// mountResourceHandlers registers all resource endpoints on the router.
// Session routes sit at the root to match the public API surface.
func (s *GatewayServer) mountResourceHandlers(r chi.Router) {
	session.Router(r)
	r.Get("/version", s.getVersion)
	r.Get("/health", s.getHealth)
}

// GetVersionRsp represents the response for version information.
// Contains server and API version details.
type GetVersionRsp struct {
	ServerVersion string `json:"serverVersion"` // server version string
	ApiVersion    string `json:"apiVersion"`    // API version string
}

// getVersion handles version information requests.
func (s *GatewayServer) getVersion(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("GetVersion")
	rsp := &GetVersionRsp{
		ServerVersion: "Waygate Server: " + Version,
		ApiVersion:    APIVersion,
	}
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, rsp)
}

// getHealth handles health check requests.
// Returns liveness status for load balancer and monitoring systems.
func (s *GatewayServer) getHealth(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("Health check")

	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleCORS provides CORS middleware for cross-origin requests.
// Configures allowed origins, methods, headers, and credentials handling.
func (s *GatewayServer) HandleCORS(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"}, //TODO: Change this to specific origin
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "Accept-Encoding"},
		ExposedHeaders:   []string{"Link", "Location", "X-Waygate-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	})(next)
}
