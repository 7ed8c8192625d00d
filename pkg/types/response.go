// Package types holds the wire-level envelopes shared by every API response.
package types

// SuccessEnvelope wraps all 2xx payloads, so clients always unwrap "data".
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the client-facing error body. Code is one of the stable error
// code strings; Details is only populated for codes that allow field-level
// detail (validation, dependency failures).
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps all non-2xx payloads.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
