package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/services"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names instead of Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type errorResponse struct {
	Error   string       `json:"error"`
	Details []fieldError `json:"details,omitempty"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// errBadRequest wraps malformed bodies and missing parameters.
type errBadRequest struct{ msg string }

func (e errBadRequest) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return errBadRequest{msg: fmt.Sprintf(format, args...)}
}

// decodeJSON reads a JSON body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body is empty")
		}
		return badRequest("invalid JSON body: %v", err)
	}
	return validate.Struct(dst)
}

// writeJSON sends v with status. Encoding errors are only logged: the status
// line is already on the wire.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to write JSON response",
			log.FieldStatusCode, status,
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
	}
}

// writeError maps domain errors to status codes. Anything unrecognized is
// logged and reported as a 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verrs    validator.ValidationErrors
		invalid  *services.ValidationError
		badInput errBadRequest
	)

	switch {
	case errors.As(err, &verrs):
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "validation failed", Details: fieldErrors(verrs)})
	case errors.As(err, &badInput):
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: badInput.msg})
	case errors.As(err, &invalid):
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: invalid.Err.Error()})
	case errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrInvalidDate):
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, r, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, services.ErrEmailTaken):
		writeJSON(w, r, http.StatusConflict, errorResponse{Error: "email already exists"})
	case errors.Is(err, core.ErrConflict):
		writeJSON(w, r, http.StatusConflict, errorResponse{Error: "conflict"})
	case errors.Is(err, services.ErrInvalidCredentials):
		writeJSON(w, r, http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
	case errors.Is(err, services.ErrUnauthorized):
		writeJSON(w, r, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
		writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func fieldErrors(verrs validator.ValidationErrors) []fieldError {
	out := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fieldError{Field: fe.Field(), Message: validationMessage(fe)})
	}
	return out
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "invalid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "required_if":
		return fe.Field() + " is required for recurring transactions"
	default:
		return fe.Field() + " is invalid"
	}
}
