// SPDX-License-Identifier: MIT

package azcs

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrBadRequest          = errors.New("contentsafety: request rejected by upstream")
	ErrUnauthorized        = errors.New("contentsafety: subscription key rejected")
	ErrNotFound            = errors.New("contentsafety: resource not found")
	ErrRateLimited         = errors.New("contentsafety: upstream rate limit exceeded")
	ErrUpstreamError       = errors.New("contentsafety: upstream internal error (5xx)")
	ErrUpstreamUnavailable = errors.New("contentsafety: host unreachable or transport failure")
	ErrBadResponse         = errors.New("contentsafety: invalid response format or malformed data")
	ErrTimeout             = errors.New("contentsafety: request timed out")
)

// APIError is a rich error type that wraps the sentinel errors with context.
type APIError struct {
	Sentinel   error
	Operation  string
	Status     int
	Code       string // Azure error code, e.g. "InvalidRequestBody"
	Message    string // Azure error message
	RetryAfter int    // seconds, from Retry-After on 429 responses
	Err        error  // nested lower-level error (e.g. net.Error)
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("azcs: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Code != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Code)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Sentinel
}

// errorEnvelope matches the Azure error response body.
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
