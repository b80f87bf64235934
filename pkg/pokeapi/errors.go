package pokeapi

import (
	"errors"
	"fmt"
)

// Error categories returned by the client. Every error produced by a request
// matches exactly one of them with errors.Is.
var (
	// ErrNotFound is returned when the upstream answers 404.
	ErrNotFound = errors.New("pokeapi: resource not found")

	// ErrTransient covers network failures, timeouts, 5xx and 429 answers.
	ErrTransient = errors.New("pokeapi: transient upstream failure")

	// ErrPermanent covers other 4xx answers, undecodable bodies and malformed references.
	ErrPermanent = errors.New("pokeapi: permanent upstream failure")

	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of upstream errors.
type ErrorClass string

const (
	// ErrorClassNotFound represents 404 answers.
	ErrorClassNotFound ErrorClass = "not_found"

	// ErrorClassClient represents other 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 rate limit errors.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents bodies that could not be decoded.
	ErrorClassDecode ErrorClass = "decode"
)

// ClassifyStatus maps an HTTP status code to an error class.
// Statuses below 400 have no class.
func ClassifyStatus(status int) ErrorClass {
	switch {
	case status == 404:
		return ErrorClassNotFound
	case status == 429:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// APIError represents an upstream error with additional context.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Endpoint   string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pokeapi %s error (status %d) on %s: %v",
			e.Class, e.StatusCode, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("pokeapi %s error (status %d) on %s",
		e.Class, e.StatusCode, e.Endpoint)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is reports whether the error belongs to one of the category sentinels.
func (e *APIError) Is(target error) bool {
	return target == e.Category()
}

// Category returns the sentinel matching the error class.
func (e *APIError) Category() error {
	switch e.Class {
	case ErrorClassNotFound:
		return ErrNotFound
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return ErrTransient
	default:
		return ErrPermanent
	}
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		// 404, other 4xx and decode failures will not change on retry
		return false
	}
}

// classOf extracts the error class from err, or "" when err is not an *APIError.
func classOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}
	return ""
}
