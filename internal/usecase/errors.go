package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

// handlerがそのまま返すエラーコード
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeUnavailable       = "UNAVAILABLE"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeEmptyCart         = "EMPTY_CART"
	CodePaymentGateway    = "PAYMENT_GATEWAY_ERROR"
	CodeInvalidSignature  = "INVALID_SIGNATURE"
	CodeNotPaid           = "NOT_PAID"
	CodeAlreadyRefunded   = "ALREADY_REFUNDED"
	CodeMissingPaymentID  = "MISSING_PAYMENT_ID"
	CodeConflict          = "CONFLICT"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeInternal          = "INTERNAL"
)

type HTTPError struct {
	Status  int
	Code    string
	Message string
	// 在庫不足のとき、分かれば残り在庫
	Available *int64
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Code:    codeForStatus(status),
		Message: message,
	}
}

func newCodedError(status int, code string, message string) error {
	return &HTTPError{Status: status, Code: code, Message: message}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeValidation
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	default:
		return CodeInternal
	}
}

func errDB() error {
	return NewHTTPError(http.StatusInternalServerError, "db error")
}

func errUnavailable(name string) error {
	return newCodedError(http.StatusBadRequest, CodeUnavailable, fmt.Sprintf("%s is currently unavailable", name))
}

func errInsufficientStock(name string, available int64) error {
	if available < 0 {
		available = 0
	}
	return &HTTPError{
		Status:    http.StatusConflict,
		Code:      CodeInsufficientStock,
		Message:   fmt.Sprintf("insufficient stock for %s (available: %d)", name, available),
		Available: &available,
	}
}
