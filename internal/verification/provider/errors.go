package provider

import (
	"errors"
	"fmt"
)

// Category is the normalized failure taxonomy for provider calls.
type Category string

const (
	CategoryTimeout          Category = "timeout"
	CategoryBadData          Category = "bad_data"
	CategoryAuthentication   Category = "authentication"
	CategoryOutage           Category = "provider_outage"
	CategoryContractMismatch Category = "contract_mismatch"
	CategoryNotFound         Category = "not_found"
	CategoryRateLimited      Category = "rate_limited"
	CategoryMisconfigured    Category = "misconfigured"
	CategoryInternal         Category = "internal"
)

// Error wraps a failed provider call. StatusCode is zero when no response was received.
type Error struct {
	Category   Category
	Operation  string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("provider %s [%s]: %s", e.Operation, e.Category, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the call may succeed.
func (e *Error) Retryable() bool {
	switch e.Category {
	case CategoryTimeout, CategoryOutage, CategoryRateLimited:
		return true
	default:
		return false
	}
}

// CategoryOf extracts the category from err, or CategoryInternal.
func CategoryOf(err error) Category {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Category
	}
	return CategoryInternal
}

// IsRetryable reports whether err is a retryable provider error.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return false
}

func categoryForStatus(code int) Category {
	switch {
	case code == 401 || code == 403:
		return CategoryAuthentication
	case code == 404:
		return CategoryNotFound
	case code == 429:
		return CategoryRateLimited
	case code >= 500:
		return CategoryOutage
	default:
		return CategoryBadData
	}
}
