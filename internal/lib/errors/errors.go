package errors

import (
	serrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// HttpError is the JSON body returned by the dashboard server on failure.
type HttpError struct {
	Reason string       `json:"reason"`
	Fields []FieldError `json:"fields,omitempty"`
}

func NewHttpError(reason string) HttpError {
	return HttpError{Reason: reason}
}

// HttpErrorOf builds the response body for err. Validation errors keep
// their field details.
func HttpErrorOf(err error) HttpError {
	var ve *ValidationError
	if serrors.As(err, &ve) {
		return HttpError{Reason: ve.Message, Fields: ve.Fields}
	}
	var ae *AuthError
	if serrors.As(err, &ae) && ae.Message != "" {
		return HttpError{Reason: ae.Message}
	}
	var se *ServerError
	if serrors.As(err, &se) && se.Message != "" {
		return HttpError{Reason: se.Message}
	}
	var ne *NetworkError
	if serrors.As(err, &ne) {
		return HttpError{Reason: "tender service is unreachable"}
	}
	return HttpError{Reason: err.Error()}
}

// NetworkError reports a transport failure: the request never produced an
// HTTP response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError reports a non-2xx response from the tender API.
type ServerError struct {
	Op      string
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: server responded %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: server responded %d: %s", e.Op, e.Status, e.Message)
}

// AuthError reports rejected credentials or a missing/invalid token.
type AuthError struct {
	Op      string
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: not authorized", e.Op)
	}
	return fmt.Sprintf("%s: not authorized: %s", e.Op, e.Message)
}

// FieldError is a single failed input rule.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// ValidationError reports client-side input problems. Nothing was sent.
type ValidationError struct {
	Message string
	Fields  []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" ("+f.Rule+")")
	}
	return e.Message + ": " + strings.Join(parts, ", ")
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// FromValidator converts validator output into a ValidationError. Errors of
// any other kind are wrapped unchanged.
func FromValidator(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !serrors.As(err, &verrs) {
		return &ValidationError{Message: err.Error()}
	}
	ve := &ValidationError{Message: "invalid input"}
	for _, fe := range verrs {
		ve.Fields = append(ve.Fields, FieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	return ve
}

// IsUnauthorized reports whether err carries a 401 from the API.
func IsUnauthorized(err error) bool {
	var ae *AuthError
	return serrors.As(err, &ae) && ae.Status == http.StatusUnauthorized
}

// StatusOf maps an error from the taxonomy to the status code the dashboard
// server answers with.
func StatusOf(err error) int {
	var (
		ne *NetworkError
		se *ServerError
		ae *AuthError
		ve *ValidationError
	)
	switch {
	case serrors.As(err, &ve):
		return http.StatusBadRequest
	case serrors.As(err, &ae):
		if ae.Status == http.StatusForbidden {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case serrors.As(err, &se):
		if se.Status >= 400 && se.Status < 500 {
			return se.Status
		}
		return http.StatusBadGateway
	case serrors.As(err, &ne):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
