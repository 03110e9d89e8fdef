package scraper

import (
	"errors"
	"fmt"
)

// ErrConfiguration marks setup problems that no amount of retrying can fix,
// such as a missing browser binary.
var ErrConfiguration = errors.New("configuration")

// Kind tags the outcome of a single fetch attempt.
type Kind string

// Attempt outcomes.
const (
	KindUnknown          Kind = "unknown"
	KindRateLimited      Kind = "rate_limited"
	KindBotChallenge     Kind = "bot_challenge"
	KindTimeout          Kind = "timeout"
	KindHTTPStatus       Kind = "http_error"
	KindMalformedPayload Kind = "malformed_payload"
	KindConnection       Kind = "connection"
	KindConfiguration    Kind = "configuration"
	KindCanceled         Kind = "canceled"
	KindOther            Kind = "other"
)

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrRateLimited indicates the target rate-limited the request (HTTP 429).
type ErrRateLimited struct {
	Err error
}

func (e ErrRateLimited) Error() string {
	return fmt.Errorf("rate_limited: %w", e.Err).Error()
}

func (e ErrRateLimited) Unwrap() error {
	return e.Err
}

// ErrBotChallenge indicates a 403 or a verification page served where data was expected.
type ErrBotChallenge struct {
	Err error
}

func (e ErrBotChallenge) Error() string {
	return fmt.Errorf("bot_challenge: %w", e.Err).Error()
}

func (e ErrBotChallenge) Unwrap() error {
	return e.Err
}

// ErrHTTPStatus indicates any other non-2xx response.
type ErrHTTPStatus struct {
	Status int
	Err    error
}

func (e ErrHTTPStatus) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("http_error: status %d", e.Status)
	}
	return fmt.Errorf("http_error: status %d: %w", e.Status, e.Err).Error()
}

func (e ErrHTTPStatus) Unwrap() error {
	return e.Err
}

// ErrMalformedPayload indicates a 2xx body that could not be used.
type ErrMalformedPayload struct {
	Err error
}

func (e ErrMalformedPayload) Error() string {
	return fmt.Errorf("malformed_payload: %w", e.Err).Error()
}

func (e ErrMalformedPayload) Unwrap() error {
	return e.Err
}

// ExhaustedError is returned once every attempt for a target failed.
// It unwraps to the last classified attempt error.
type ExhaustedError struct {
	Target   string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempts: %v", e.Target, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// KindOf returns the attempt tag carried by err.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, ErrConfiguration) {
		return KindConfiguration
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return KindRateLimited
	}
	var challenge ErrBotChallenge
	if errors.As(err, &challenge) {
		return KindBotChallenge
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return KindTimeout
	}
	var status ErrHTTPStatus
	if errors.As(err, &status) {
		return KindHTTPStatus
	}
	var malformed ErrMalformedPayload
	if errors.As(err, &malformed) {
		return KindMalformedPayload
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return KindConnection
	}
	if isCanceled(err) {
		return KindCanceled
	}
	return KindOther
}

// Retryable reports whether another attempt could succeed.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindConfiguration, KindCanceled, KindUnknown:
		return false
	default:
		return true
	}
}
