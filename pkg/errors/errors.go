package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeFetch represents network/timeout/HTTP status errors while retrieving a page
	ErrorTypeFetch ErrorType = "fetch"
	// ErrorTypeRateLimit represents rate limiting errors (429/430 responses)
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeSelector represents selector resolution errors
	ErrorTypeSelector ErrorType = "selector"
	// ErrorTypeParse represents price normalization errors
	ErrorTypeParse ErrorType = "parse"
	// ErrorTypeStore represents state store I/O errors
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeDelivery represents notification transport errors
	ErrorTypeDelivery ErrorType = "delivery"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// WatchError represents a watcher-specific error
type WatchError struct {
	Type    ErrorType
	Item    string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *WatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Item, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Item, e.Message)
}

// Unwrap returns the underlying error
func (e *WatchError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is worth one more fetch attempt
func (e *WatchError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeFetch:
		return true
	case ErrorTypeRateLimit:
		return false
	default:
		return false
	}
}

// IsFatal returns true if the error must abort the whole run
func (e *WatchError) IsFatal() bool {
	switch e.Type {
	case ErrorTypeStore, ErrorTypeConfiguration:
		return true
	default:
		return false
	}
}

// New creates a new WatchError
func New(errType ErrorType, item, message string, err error) *WatchError {
	return &WatchError{
		Type:    errType,
		Item:    item,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewFetch creates a new fetch error
func NewFetch(item, message string, err error) *WatchError {
	return New(ErrorTypeFetch, item, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(item string, duration time.Duration) *WatchError {
	message := fmt.Sprintf("rate limited for %v", duration)
	return New(ErrorTypeRateLimit, item, message, nil)
}

// NewSelector creates a new selector error
func NewSelector(item, message string) *WatchError {
	return New(ErrorTypeSelector, item, message, nil)
}

// NewParse creates a new parse error
func NewParse(item, message string, err error) *WatchError {
	return New(ErrorTypeParse, item, message, err)
}

// NewStore creates a new store error
func NewStore(item, message string, err error) *WatchError {
	return New(ErrorTypeStore, item, message, err)
}

// NewDelivery creates a new delivery error
func NewDelivery(item, message string, err error) *WatchError {
	return New(ErrorTypeDelivery, item, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(item, message string, err error) *WatchError {
	return New(ErrorTypePublisher, item, message, err)
}

// NewValidation creates a new validation error
func NewValidation(item, message string) *WatchError {
	return New(ErrorTypeValidation, item, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *WatchError {
	return New(ErrorTypeConfiguration, "", message, err)
}
