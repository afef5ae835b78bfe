package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker/v2"

	"sacs-telemedicina-hub/internal/appointments"
	"sacs-telemedicina-hub/internal/clinical"
	"sacs-telemedicina-hub/internal/identity"
	"sacs-telemedicina-hub/internal/storage"
	"sacs-telemedicina-hub/internal/telemedicine"
)

// StatusFor maps a domain error to the HTTP status reported to clients.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, appointments.ErrNotFound),
		errors.Is(err, clinical.ErrNotFound),
		errors.Is(err, telemedicine.ErrSessionNotFound),
		errors.Is(err, identity.ErrUserNotFound),
		errors.Is(err, identity.ErrProfileNotFound):
		return http.StatusNotFound
	case errors.Is(err, appointments.ErrInvalidTransition),
		errors.Is(err, clinical.ErrConflict),
		errors.Is(err, telemedicine.ErrSessionClosed),
		errors.Is(err, identity.ErrPatientExists):
		return http.StatusConflict
	case errors.Is(err, appointments.ErrValidation),
		errors.Is(err, clinical.ErrValidation),
		errors.Is(err, identity.ErrPatientValidation):
		return http.StatusBadRequest
	case errors.Is(err, identity.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, appointments.ErrPersistence),
		errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests):
		return http.StatusServiceUnavailable
	}
	var opErr *storage.OpError
	if errors.As(err, &opErr) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// RespondError writes err using the status chosen by StatusFor.
func RespondError(c *gin.Context, err error) {
	status := StatusFor(err)
	_ = c.Error(err)
	if status == http.StatusInternalServerError {
		InternalServerError(c, "Unexpected error")
		return
	}
	Error(c, status, err.Error())
}
