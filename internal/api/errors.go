// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrHTTPStatus matches every *StatusError.
	ErrHTTPStatus = errors.New("unexpected HTTP status")
	// ErrInvalidResponse indicates a body that is not the JSON envelope.
	ErrInvalidResponse = errors.New("invalid response from backend")
	// ErrBusiness matches every *BusinessError.
	ErrBusiness = errors.New("backend rejected request")
)

// StatusError is a non-2xx HTTP answer.
type StatusError struct {
	StatusCode int
	Body       string
}

func newStatusError(code int, body []byte) *StatusError {
	return &StatusError{StatusCode: code, Body: strings.TrimSpace(string(body))}
}

// Error uses the wording shown inline in a failed chat.
func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
}

// Is makes errors.Is(err, ErrHTTPStatus) match.
func (e *StatusError) Is(target error) bool {
	return target == ErrHTTPStatus
}

// BusinessError is an envelope with a non-zero code. Message is shown to
// the user as-is.
type BusinessError struct {
	Code    int
	Message string
}

func (e *BusinessError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with code %d", e.Code)
	}
	return e.Message
}

// Is makes errors.Is(err, ErrBusiness) match.
func (e *BusinessError) Is(target error) bool {
	return target == ErrBusiness
}

// UserMessage returns the text to show for err: the server message for a
// business error, otherwise err.Error().
func UserMessage(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// IsNotFound reports whether err is an HTTP 404 or a business code 404.
func IsNotFound(err error) bool {
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == 404 {
		return true
	}
	var be *BusinessError
	return errors.As(err, &be) && be.Code == 404
}
