package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trendyx/identity-service/internal/domain"
	res "github.com/trendyx/identity-service/pkg/http"
)

type errorClass struct {
	status  int
	code    string
	message string
}

// Credential failures share one message on purpose: the response must not
// reveal whether the email exists or which check failed.
var errorClasses = []struct {
	sentinel error
	class    errorClass
}{
	{domain.ErrInvalidInput, errorClass{http.StatusBadRequest, "invalid_input", ""}},
	{domain.ErrDuplicateIdentity, errorClass{http.StatusConflict, "duplicate_identity", "account already exists"}},
	{domain.ErrInvalidCredentials, errorClass{http.StatusUnauthorized, "invalid_credentials", "invalid credentials"}},
	{domain.ErrAccountLocked, errorClass{http.StatusForbidden, "account_locked", "account temporarily locked"}},
	{domain.ErrInvalidToken, errorClass{http.StatusUnauthorized, "invalid_token", "invalid token"}},
	{domain.ErrExpired, errorClass{http.StatusUnauthorized, "expired", "expired"}},
	{domain.ErrEmailMismatch, errorClass{http.StatusUnauthorized, "email_mismatch", "email does not match token"}},
	{domain.ErrOriginNotAllowed, errorClass{http.StatusForbidden, "origin_not_allowed", "origin not allowed"}},
	{domain.ErrInvalidSignature, errorClass{http.StatusUnauthorized, "invalid_signature", "invalid signature"}},
	{domain.ErrNotFound, errorClass{http.StatusNotFound, "not_found", "not found"}},
	{domain.ErrForbidden, errorClass{http.StatusForbidden, "forbidden", "insufficient role"}},
	{domain.ErrPersistence, errorClass{http.StatusInternalServerError, "persistence_failure", "could not persist state"}},
}

func errorJSON(c echo.Context, traceID string, err error) error {
	for _, e := range errorClasses {
		if errors.Is(err, e.sentinel) {
			msg := e.class.message
			if msg == "" {
				msg = err.Error()
			}
			return res.ErrorJSON(c, e.class.status, e.class.code, msg, traceID, nil)
		}
	}
	return res.ErrorJSON(c, http.StatusInternalServerError, "internal_error", "internal error", traceID, nil)
}
