package session

import (
	"net/http"

	"github.com/waygate/waygate/internal/common/apperrors"
)

var (
	// ErrSessionError is the base error for all session-related errors.
	ErrSessionError apperrors.Error = apperrors.New("error in processing session").SetStatusCode(http.StatusInternalServerError)

	// ErrBadRequest is returned for malformed or invalid requests.
	ErrBadRequest apperrors.Error = ErrSessionError.New("bad request").SetStatusCode(http.StatusBadRequest)

	// ErrSessionExists is returned when creating a session whose id is
	// already active.
	ErrSessionExists apperrors.Error = ErrSessionError.New("session already exists").SetStatusCode(http.StatusBadRequest)

	// ErrSessionNotFound is returned when a session id is not registered.
	ErrSessionNotFound apperrors.Error = ErrSessionError.New("session not found").SetStatusCode(http.StatusNotFound)

	// ErrNoPairingArtifact is returned when no QR code is cached for a
	// session; either it connected already or pairing never started.
	ErrNoPairingArtifact apperrors.Error = ErrSessionError.New("qr code not found or session already connected").SetStatusCode(http.StatusNotFound)

	// ErrSessionNotConnected is returned when an operation requires a
	// connected session.
	ErrSessionNotConnected apperrors.Error = ErrSessionError.New("session not connected").SetStatusCode(http.StatusBadRequest)

	// ErrUnsupportedMessageType is returned for send requests with a
	// message type other than text.
	ErrUnsupportedMessageType apperrors.Error = ErrSessionError.New("unsupported message type").SetStatusCode(http.StatusBadRequest)

	// ErrStartFailed is returned when a protocol client cannot be
	// constructed for a session.
	ErrStartFailed apperrors.Error = ErrSessionError.New("unable to start session").SetStatusCode(http.StatusInternalServerError)

	// ErrSendFailed is returned when the protocol client rejects an
	// outbound message.
	ErrSendFailed apperrors.Error = ErrSessionError.New("unable to send message").SetStatusCode(http.StatusInternalServerError)
)
