// Package upstream normalizes failures from the remote systems the automation
// talks to (the CRM and the registry lookup service) into one taxonomy.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Category defines the normalized failure taxonomy.
type Category string

const (
	// CategoryTimeout indicates the upstream took too long to respond
	CategoryTimeout Category = "timeout"

	// CategoryBadData indicates the upstream returned invalid/malformed data
	// or rejected our input
	CategoryBadData Category = "bad_data"

	// CategoryAuthentication indicates credential or permission issues
	CategoryAuthentication Category = "authentication"

	// CategoryOutage indicates the upstream is unavailable
	CategoryOutage Category = "provider_outage"

	// CategoryContractMismatch indicates the upstream API or field schema changed
	CategoryContractMismatch Category = "contract_mismatch"

	// CategoryNotFound indicates the requested entity doesn't exist
	CategoryNotFound Category = "not_found"

	// CategoryRateLimited indicates too many requests
	CategoryRateLimited Category = "rate_limited"

	// CategoryInternal indicates an unexpected internal error
	CategoryInternal Category = "internal"
)

// Error wraps an upstream failure with its normalized category.
type Error struct {
	Category   Category
	Upstream   string // "bitrix", "pgfn"
	Operation  string // "crm.deal.list", "lookup"
	StatusCode int
	Message    string
	Underlying error
	Retryable  bool
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s [%s]: %s", e.Upstream, e.Operation, e.Category, e.Message)
	if e.Underlying != nil {
		msg += ": " + e.Underlying.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// New creates a normalized upstream error. Timeouts, outages and rate limits are retryable.
func New(category Category, upstream, operation, message string, underlying error) *Error {
	retryable := category == CategoryTimeout ||
		category == CategoryOutage ||
		category == CategoryRateLimited

	return &Error{
		Category:   category,
		Upstream:   upstream,
		Operation:  operation,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// FromStatus classifies a non-2xx HTTP status.
func FromStatus(upstream, operation string, status int, body string) *Error {
	var category Category
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		category = CategoryAuthentication
	case status == http.StatusNotFound:
		category = CategoryNotFound
	case status == http.StatusTooManyRequests:
		category = CategoryRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		category = CategoryTimeout
	case status >= 500:
		category = CategoryOutage
	default:
		category = CategoryBadData
	}
	e := New(category, upstream, operation, fmt.Sprintf("unexpected status %d", status), nil)
	e.StatusCode = status
	if body != "" {
		e.Message += ": " + body
	}
	return e
}

// FromTransport classifies an error returned by http.Client.Do.
func FromTransport(upstream, operation string, err error) *Error {
	if IsTimeout(err) {
		return New(CategoryTimeout, upstream, operation, "request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return New(CategoryInternal, upstream, operation, "request cancelled", err)
	}
	return New(CategoryOutage, upstream, operation, "request failed", err)
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error.
func GetCategory(err error) Category {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Category
	}
	return CategoryInternal
}

// IsFatal reports failures that retrying or waiting for the next cycle cannot fix:
// bad credentials or a changed field schema.
func IsFatal(err error) bool {
	switch GetCategory(err) {
	case CategoryAuthentication, CategoryContractMismatch:
		return true
	default:
		return false
	}
}
