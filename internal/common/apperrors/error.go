// Package apperrors provides the application error type used across the
// gateway. Errors form chains: a package declares a base error, derives
// named errors from it, and handlers attach context at the call site. Every
// error carries an HTTP status code so the control API can surface it
// without per-handler mapping.
package apperrors

// Error is the interface implemented by all application errors. It extends
// the standard error interface with derivation, wrapping, and status code
// management. Derivation methods return new values; errors are immutable
// once created.
type Error interface {
	error
	Unwrap() error // support for errors.Is / errors.As

	New(msg string) Error                  // derives a fresh error with the current one as base
	Msg(msg string) Error                  // new error with message, wrapping the original
	MsgErr(msg string, err ...error) Error // new error with message, wrapping extra errors
	Err(err ...error) Error                // attaches additional errors, keeping the message
	SetStatusCode(int) Error               // returns a copy with the given HTTP status code
	StatusCode() int                       // HTTP status code for this error
	ErrorAll() string                      // message including all wrapped errors
	UnwrapAll() []error                    // all wrapped errors in attachment order
}
