// Package resilience provides the typed error taxonomy for the extraction
// pipeline and a retry helper with exponential backoff.
package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"
)

// InputCode classifies caller-recoverable input failures.
type InputCode string

const (
	CodeNoInput       InputCode = "no_input"
	CodeRequiresOCR   InputCode = "requires_ocr"
	CodePDFParseError InputCode = "pdf_parse_error"
)

// InputError reports an unusable input document. In agent mode a
// requires_ocr error is auto-escalated to OCR instead of surfacing.
type InputError struct {
	Code InputCode
	Msg  string
}

func (e *InputError) Error() string {
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// NewInputError builds an InputError with a human-readable message.
func NewInputError(code InputCode, msg string) *InputError {
	return &InputError{Code: code, Msg: msg}
}

// AsInputError extracts an InputError from an error chain.
func AsInputError(err error) (*InputError, bool) {
	var ie *InputError
	ok := errors.As(err, &ie)
	return ie, ok
}

// SchemaError reports model output that failed structural verification.
// Fatal in direct mode; in agent mode it signals the loop to continue.
type SchemaError struct {
	Detail string
}

func (e *SchemaError) Error() string {
	return "ai_invalid_json: " + e.Detail
}

// IsSchemaError reports whether err chains to a SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// ProviderError reports an LLM backend failure. Status is the HTTP status
// when the backend responded, zero otherwise. Empty marks a provider that
// returned no content after its in-process retry.
type ProviderError struct {
	Provider string
	Status   int
	Empty    bool
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Empty {
		return fmt.Sprintf("ai_extraction_failed: %s returned no content", e.Provider)
	}
	if e.Status != 0 {
		return fmt.Sprintf("ai_extraction_failed: %s returned status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("ai_extraction_failed: %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// AsProviderError extracts a ProviderError from an error chain.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	ok := errors.As(err, &pe)
	return pe, ok
}

// RateLimitError reports a rejection from the outbound call limiter. Fatal
// for the call; the caller must honor RetryAfter.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter.Round(time.Second))
}

// IsRateLimit reports whether err chains to a RateLimitError.
func IsRateLimit(err error) bool {
	var re *RateLimitError
	return errors.As(err, &re)
}

// AsRateLimitError extracts a RateLimitError from an error chain.
func AsRateLimitError(err error) (*RateLimitError, bool) {
	var re *RateLimitError
	ok := errors.As(err, &re)
	return re, ok
}

// TransientError wraps an error that is safe to retry (5xx, network timeout).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or matches common transient network failure patterns.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true for server-side statuses that are safe
// to retry. 4xx responses (other than 408/429) are never retried.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
