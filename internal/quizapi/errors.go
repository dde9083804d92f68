package quizapi

import (
	"encoding/json"
	"strings"
)

// Fallback messages used when the backend does not explain a failure.
const (
	msgGenerateFailed = "Failed to generate quiz"
	msgHistoryFailed  = "Failed to fetch history"
	msgQuizFailed     = "Failed to fetch quiz"
)

// RequestError is returned for every failed call to the quiz backend: transport errors,
// non-2xx responses and undecodable bodies alike. Message is safe to show to users.
type RequestError struct {
	StatusCode int // zero for transport failures
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	if e == nil {
		return "request error"
	}
	return e.Message
}

func (e *RequestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// parseRequestError builds a RequestError from a non-2xx response body, preferring the
// backend's "detail" field.
func parseRequestError(status int, raw []byte, fallback string) *RequestError {
	var env struct {
		Detail json.RawMessage `json:"detail"`
	}
	msg := fallback
	if err := json.Unmarshal(raw, &env); err == nil {
		if detail := detailMessage(env.Detail); detail != "" {
			msg = detail
		}
	}
	return &RequestError{StatusCode: status, Message: msg}
}

// detailMessage extracts a string detail. Validation errors carry a list of objects
// instead; the first "msg" is used for those.
func detailMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		for _, it := range items {
			if m := strings.TrimSpace(it.Msg); m != "" {
				return m
			}
		}
	}
	return ""
}
