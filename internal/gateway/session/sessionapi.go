package session

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/waygate/waygate/internal/common/httpx"
	"github.com/waygate/waygate/pkg/api"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type createSessionRequest struct {
	SessionID  string `json:"sessionId" validate:"required"`
	WebhookURL string `json:"webhookUrl" validate:"omitempty,url"`
}

type createSessionResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId"`
}

// createSession handles HTTP requests to register and start a new session.
func createSession(r *http.Request) (*httpx.Response, error) {
	req := &createSessionRequest{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, httpx.ErrUnableToParseReqData()
	}
	if err := validate.Struct(req); err != nil {
		return nil, ErrBadRequest.Err(err)
	}

	if err := ActiveManager().StartSession(r.Context(), req.SessionID, req.WebhookURL); err != nil {
		return nil, err
	}

	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: createSessionResponse{
			Success:   true,
			SessionID: req.SessionID,
		},
	}, nil
}

type qrCodeResponse struct {
	QRCode string `json:"qrCode"`
}

// getQRCode returns the current pairing artifact for a session.
func getQRCode(r *http.Request) (*httpx.Response, error) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		return nil, httpx.ErrInvalidRequest("session id is required")
	}

	artifact, err := ActiveManager().QRCode(sessionID)
	if err != nil {
		return nil, err
	}

	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   qrCodeResponse{QRCode: artifact},
	}, nil
}

// getStatus returns the visible state of a session.
func getStatus(r *http.Request) (*httpx.Response, error) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		return nil, httpx.ErrInvalidRequest("session id is required")
	}

	snapshot, err := ActiveManager().Status(sessionID)
	if err != nil {
		return nil, err
	}

	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   snapshot,
	}, nil
}

type sendMessageRequest struct {
	SessionID   string `json:"sessionId" validate:"required"`
	To          string `json:"to" validate:"required"`
	Message     string `json:"message" validate:"required"`
	MessageType string `json:"messageType"`
}

type sendMessageResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId"`
}

// sendMessage sends a text message through a connected session.
func sendMessage(r *http.Request) (*httpx.Response, error) {
	req := &sendMessageRequest{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, httpx.ErrUnableToParseReqData()
	}
	if err := validate.Struct(req); err != nil {
		return nil, ErrBadRequest.Err(err)
	}
	if req.MessageType != "" && req.MessageType != string(api.MessageTypeText) {
		return nil, ErrUnsupportedMessageType
	}

	messageID, err := ActiveManager().SendText(r.Context(), req.SessionID, req.To, req.Message)
	if err != nil {
		return nil, err
	}

	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: sendMessageResponse{
			Success:   true,
			MessageID: messageID,
		},
	}, nil
}

type deleteSessionResponse struct {
	Success bool `json:"success"`
}

// deleteSession logs a session out and removes all its state.
func deleteSession(r *http.Request) (*httpx.Response, error) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		return nil, httpx.ErrInvalidRequest("session id is required")
	}

	if err := ActiveManager().StopSession(r.Context(), sessionID); err != nil {
		return nil, err
	}

	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   deleteSessionResponse{Success: true},
	}, nil
}

type listSessionsResponse struct {
	Sessions []Snapshot `json:"sessions"`
}

// listSessions returns a snapshot of every active session.
func listSessions(r *http.Request) (*httpx.Response, error) {
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   listSessionsResponse{Sessions: ActiveManager().Sessions()},
	}, nil
}
