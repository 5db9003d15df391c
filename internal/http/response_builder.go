// Package http serves the web pages and the JSON notification API.
//
// This file implements a small builder for handler responses: JSON bodies
// with the {"success": ...} envelope, and post/redirect/get replies that
// carry a flash message to the next page.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"pisoheroes/internal/analytics"
	"pisoheroes/internal/core"
	"pisoheroes/internal/services"
)

// ResponseBuilder provides a fluent API for building handler responses.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    map[string]any
	redirect   string
	flash      *Flash
}

// NewResponse creates a builder with a default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a response header.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// Field adds a key to the JSON body.
func (b *ResponseBuilder) Field(key string, value any) *ResponseBuilder {
	if b.payload == nil {
		b.payload = make(map[string]any)
	}
	b.payload[key] = value
	return b
}

// Redirect makes the response a 303 to url.
func (b *ResponseBuilder) Redirect(url string) *ResponseBuilder {
	b.redirect = url
	b.statusCode = http.StatusSeeOther
	return b
}

// Flash attaches a message shown once on the next rendered page.
func (b *ResponseBuilder) Flash(kind FlashKind, message string) *ResponseBuilder {
	b.flash = &Flash{Kind: kind, Message: message}
	return b
}

// Success is a redirect with a success flash.
func (b *ResponseBuilder) Success(url, message string) *ResponseBuilder {
	return b.Redirect(url).Flash(FlashSuccess, message)
}

// Write sends the built response.
func (b *ResponseBuilder) Write(w http.ResponseWriter, r *http.Request) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.flash != nil {
		setFlash(w, *b.flash)
	}
	if b.redirect != "" {
		http.Redirect(w, r, b.redirect, b.statusCode)
		return
	}

	body := map[string]any{"success": b.statusCode < 400}
	for k, v := range b.payload {
		body[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.WarnContext(r.Context(), "Failed to encode JSON response", "error", err)
	}
}

// JSONError creates a failed JSON response.
func JSONError(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).Field("error", message)
}

// StatusFor maps domain errors to HTTP statuses.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicateAlert):
		return http.StatusConflict
	case isValidation(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

var validationErrors = []error{
	core.ErrInvalidDay,
	core.ErrInvalidMonth,
	core.ErrDateOutOfRange,
	core.ErrInvalidDate,
	core.ErrInvalidAmount,
	core.ErrAmountTooLarge,
	core.ErrUnknownCategory,
	core.ErrEmptyCategory,
	core.ErrUnknownSource,
	core.ErrInvalidThreshold,
	core.ErrEmptyGoalName,
	core.ErrNotesTooLong,
	core.ErrInsufficientFunds,
	core.ErrNothingToReset,
	core.ErrEmptyReminderTitle,
	core.ErrReminderTitleLong,
	core.ErrReminderDetailLong,
	core.ErrUnknownFrequency,
	core.ErrReminderNeedsDue,
	core.ErrInvalidPreAlert,
	analytics.ErrInvalidRange,
	analytics.ErrRangeTooLong,
	services.ErrNoEmailAddress,
	errInvalidID,
}

func isValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// UserMessage is the text shown to the user for err. Internal failures are
// not described.
func UserMessage(err error) string {
	switch StatusFor(err) {
	case http.StatusNotFound:
		return "Not found"
	case http.StatusConflict, http.StatusUnprocessableEntity:
		for _, target := range append(validationErrors, core.ErrDuplicateAlert) {
			if errors.Is(err, target) {
				return capitalize(target.Error())
			}
		}
		return "Invalid data"
	default:
		return "Something went wrong, please try again"
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
