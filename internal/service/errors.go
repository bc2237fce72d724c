package service

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrOrderNotPayable      = errors.New("order is not payable")
	ErrGatewayNotConfigured = errors.New("payment gateway is not configured")
	ErrGatewayInit          = errors.New("payment initialization failed")
)

// ValidationError marks malformed input. Surfaced to callers as 4xx with the
// message; never retried.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationErrorf(format string, args ...interface{}) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// DomainError marks a business-rule rejection (unknown product, sold out).
// The message names the offending entity but nothing beyond what the caller
// already supplied.
type DomainError struct {
	msg string
}

func (e *DomainError) Error() string { return e.msg }

func domainErrorf(format string, args ...interface{}) error {
	return &DomainError{msg: fmt.Sprintf(format, args...)}
}
