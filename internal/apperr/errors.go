// Package apperr defines the error taxonomy shared by the gateways, the
// coordinators and the HTTP API.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error independently of where it happened.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindInvalidPhone        Kind = "invalid_phone"
	KindRateLimited         Kind = "rate_limited"
	KindInvalidCode         Kind = "invalid_code"
	KindExpiredCode         Kind = "expired_code"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindNetwork             Kind = "network"
	KindConflict            Kind = "conflict"
	KindNotFound            Kind = "not_found"
	KindUnauthorized        Kind = "unauthorized"
	KindInternal            Kind = "internal"
)

var (
	ErrValidation          = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrInvalidPhone        = &Error{Kind: KindInvalidPhone, Message: "invalid phone number"}
	ErrRateLimited         = &Error{Kind: KindRateLimited, Message: "too many requests"}
	ErrInvalidCode         = &Error{Kind: KindInvalidCode, Message: "invalid verification code"}
	ErrExpiredCode         = &Error{Kind: KindExpiredCode, Message: "verification code has expired"}
	ErrProviderUnavailable = &Error{Kind: KindProviderUnavailable, Message: "identity provider unavailable"}
	ErrNetwork             = &Error{Kind: KindNetwork, Message: "network error"}
	ErrConflict            = &Error{Kind: KindConflict, Message: "already exists"}
	ErrNotFound            = &Error{Kind: KindNotFound, Message: "not found"}
	ErrUnauthorized        = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
)

// Error is the tagged error carried across package boundaries.
type Error struct {
	Kind    Kind
	Message string
	// Fields holds per-field validation messages, keyed by JSON field name.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so errors.Is(err, apperr.ErrInvalidCode) works for
// any error of that kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation builds a validation error with per-field details.
func Validation(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Retryable reports whether a failure is transient and the same call may be
// issued again.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindProviderUnavailable, KindRateLimited:
		return true
	default:
		return false
	}
}

// HTTPStatus maps a kind to the status code used by the API.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindInvalidPhone:
		return http.StatusBadRequest
	case KindInvalidCode, KindExpiredCode, KindUnauthorized:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindProviderUnavailable, KindNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// KindFromStatus is the inverse of HTTPStatus for responses that carry no
// error code. Server errors map to fallback.
func KindFromStatus(status int, fallback Kind) Kind {
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return KindValidation
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindUnauthorized
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	default:
		return fallback
	}
}

// ParseKind converts a wire code back into a Kind.
func ParseKind(code string) (Kind, bool) {
	switch k := Kind(code); k {
	case KindValidation, KindInvalidPhone, KindRateLimited, KindInvalidCode, KindExpiredCode,
		KindProviderUnavailable, KindNetwork, KindConflict, KindNotFound, KindUnauthorized, KindInternal:
		return k, true
	}
	return "", false
}

var userMessages = map[Kind]string{
	KindValidation:          "يرجى التحقق من البيانات المدخلة",
	KindInvalidPhone:        "رقم الهاتف غير صالح",
	KindRateLimited:         "محاولات كثيرة، يرجى المحاولة لاحقاً",
	KindInvalidCode:         "رمز التحقق غير صحيح",
	KindExpiredCode:         "انتهت صلاحية رمز التحقق، يرجى طلب رمز جديد",
	KindProviderUnavailable: "خدمة التحقق غير متاحة حالياً، يرجى المحاولة لاحقاً",
	KindNetwork:             "تعذر الاتصال بالخادم، يرجى المحاولة مرة أخرى",
	KindNotFound:            "لم يتم العثور على الملف الشخصي",
	KindUnauthorized:        "يرجى تسجيل الدخول أولاً",
}

// UserMessage returns the text shown to end users for err.
func UserMessage(err error) string {
	if msg, ok := userMessages[KindOf(err)]; ok {
		return msg
	}
	return "حدث خطأ غير متوقع"
}
