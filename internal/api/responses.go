package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nikolayk812/storefront-cart/internal/catalog"
	"github.com/nikolayk812/storefront-cart/internal/checkout"
	"github.com/nikolayk812/storefront-cart/internal/domain"
	"github.com/nikolayk812/storefront-cart/internal/logger"
)

type successEnvelope struct {
	Data any `json:"data"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

const (
	codeValidation  = "VALIDATION_ERROR"
	codeNotFound    = "NOT_FOUND"
	codeConflict    = "CONFLICT"
	codeUnavailable = "CART_NOT_UPDATED"
	codeInternal    = "INTERNAL_ERROR"
)

// requestError is a client mistake carrying its own status and details.
type requestError struct {
	status  int
	code    string
	message string
	details any
	err     error
}

func (e *requestError) Error() string {
	if e.err != nil {
		return e.message + ": " + e.err.Error()
	}
	return e.message
}

func (e *requestError) Unwrap() error {
	return e.err
}

func validationError(message string, details any, err error) *requestError {
	return &requestError{status: http.StatusBadRequest, code: codeValidation, message: message, details: details, err: err}
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeSuccessStatus(w, http.StatusOK, data)
}

func writeSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successEnvelope{Data: data})
}

// writeError keeps failures soft: persistence problems become a dismissible 503 message.
func writeError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	status, body := http.StatusInternalServerError, apiError{Code: codeInternal, Message: "unexpected error"}

	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		status, body = reqErr.status, apiError{Code: reqErr.code, Message: reqErr.message, Details: reqErr.details}
	case errors.Is(err, domain.ErrCartNotUpdated):
		status, body = http.StatusServiceUnavailable, apiError{Code: codeUnavailable, Message: "Could not update cart"}
	case errors.Is(err, domain.ErrMissingProductID):
		status, body = http.StatusBadRequest, apiError{Code: codeValidation, Message: "product id is required"}
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, checkout.ErrLineNotFound):
		status, body = http.StatusNotFound, apiError{Code: codeNotFound, Message: err.Error()}
	case errors.Is(err, checkout.ErrEmptyCart), errors.Is(err, checkout.ErrOutOfStock):
		status, body = http.StatusConflict, apiError{Code: codeConflict, Message: err.Error()}
	}

	if logg != nil {
		ctx = logg.WithField(ctx, "status", status)
		if status >= http.StatusInternalServerError {
			logg.Error(ctx, "request.error", err)
		} else {
			logg.WarnErr(ctx, "request.rejected", err)
		}
	}

	writeJSON(w, status, errorEnvelope{Error: body})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
