package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// challengeMarkers appear on the store's verification interstitials.
var challengeMarkers = []string{"security check", "robot", "verification", "captcha"}

// Classify turns one completed response into a payload or a typed attempt error.
// JSON targets must return a 2xx JSON body; HTML targets accept any 2xx body.
func Classify(status int, contentType string, body []byte, expectJSON bool) ([]byte, error) {
	switch {
	case status == http.StatusTooManyRequests:
		return nil, ErrRateLimited{Err: fmt.Errorf("http status %d", status)}
	case status == http.StatusForbidden:
		return nil, ErrBotChallenge{Err: fmt.Errorf("http status %d", status)}
	case status < 200 || status > 299:
		return nil, ErrHTTPStatus{Status: status}
	}

	if !expectJSON {
		return body, nil
	}

	trimmed := bytes.TrimSpace(body)
	if looksLikeHTML(contentType, trimmed) {
		if hasChallengeMarker(trimmed) {
			return nil, ErrBotChallenge{Err: errors.New("verification page served instead of JSON")}
		}
		return nil, ErrMalformedPayload{Err: errors.New("html served instead of JSON")}
	}
	if len(trimmed) == 0 {
		return nil, ErrMalformedPayload{Err: errors.New("empty body")}
	}
	if !json.Valid(trimmed) {
		return nil, ErrMalformedPayload{Err: errors.New("body is not valid JSON")}
	}
	return trimmed, nil
}

func looksLikeHTML(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "html") {
		return true
	}
	return len(body) > 0 && body[0] == '<'
}

func hasChallengeMarker(body []byte) bool {
	lower := bytes.ToLower(body)
	for _, marker := range challengeMarkers {
		if bytes.Contains(lower, []byte(marker)) {
			return true
		}
	}
	return false
}

// ClassifyError maps a transport-level failure to an attempt error.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConfiguration) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return ErrConnection{Err: err}
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
