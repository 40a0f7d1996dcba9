package types

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// InvoiceError is the error type returned by every package in this module
type InvoiceError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *InvoiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *InvoiceError) Unwrap() error {
	return e.Err
}

// Is matches any InvoiceError carrying the same code
func (e *InvoiceError) Is(target error) bool {
	t, ok := target.(*InvoiceError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Error codes
const (
	ErrUnsupportedToken   = "UNSUPPORTED_TOKEN"
	ErrMissingAmount      = "MISSING_AMOUNT"
	ErrInvalidAmount      = "INVALID_AMOUNT"
	ErrInvalidRecipient   = "INVALID_RECIPIENT"
	ErrMissingCheckoutURL = "MISSING_CHECKOUT_URL"
	ErrInvoiceExpired     = "INVOICE_EXPIRED"
	ErrInvalidTransition  = "INVALID_TRANSITION"
	ErrVerificationFailed = "VERIFICATION_FAILED"
	ErrPollingTransient   = "POLLING_TRANSIENT"
	ErrUnsupportedNetwork = "UNSUPPORTED_NETWORK"
	ErrInvalidInvoice     = "INVALID_INVOICE"
	ErrNotFound           = "NOT_FOUND"
	ErrConfigError        = "CONFIG_ERROR"
	ErrNetworkError       = "NETWORK_ERROR"
)

// NewError builds an InvoiceError with the given code
func NewError(code, message string) *InvoiceError {
	return &InvoiceError{Code: code, Message: message}
}

// WrapError builds an InvoiceError with the given code around err
func WrapError(code, message string, err error) *InvoiceError {
	return &InvoiceError{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the outermost InvoiceError in err's chain
func CodeOf(err error) string {
	var ie *InvoiceError
	if errors.As(err, &ie) {
		return ie.Code
	}
	return ""
}

// HasCode reports whether any InvoiceError in err's chain carries code
func HasCode(err error, code string) bool {
	return errors.Is(err, &InvoiceError{Code: code})
}

// IsUserFacing reports whether err must be shown to the user. Errors that
// affect money movement are; transient polling noise and display-only
// lookups are not.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	switch CodeOf(err) {
	case ErrPollingTransient, ErrUnsupportedNetwork:
		return false
	default:
		return true
	}
}
