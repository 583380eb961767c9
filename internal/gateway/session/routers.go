package session

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/waygate/waygate/internal/common/httpx"
)

// ResponseHandlerParam defines the configuration for HTTP route handlers.
// Contains HTTP method, path, and handler function for route registration.
type ResponseHandlerParam struct {
	Method  string               // HTTP method (GET, POST, etc.)
	Path    string               // URL path pattern
	Handler httpx.RequestHandler // handler function for the route
}

var sessionHandlers = []ResponseHandlerParam{
	{
		Method:  http.MethodPost,
		Path:    "/create-session",
		Handler: createSession,
	},
	{
		Method:  http.MethodGet,
		Path:    "/qr-code/{sessionID}",
		Handler: getQRCode,
	},
	{
		Method:  http.MethodGet,
		Path:    "/status/{sessionID}",
		Handler: getStatus,
	},
	{
		Method:  http.MethodPost,
		Path:    "/send-message",
		Handler: sendMessage,
	},
	{
		Method:  http.MethodDelete,
		Path:    "/session/{sessionID}",
		Handler: deleteSession,
	},
	{
		Method:  http.MethodGet,
		Path:    "/sessions",
		Handler: listSessions,
	},
}

// Router sets up HTTP routes for session management.
func Router(r chi.Router) {
	for _, handler := range sessionHandlers {
		r.Method(handler.Method, handler.Path, httpx.WrapHttpRsp(handler.Handler))
	}
}
