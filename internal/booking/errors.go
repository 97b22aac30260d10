package booking

import (
	"errors"
	"net/http"
	"time"

	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/pkg/apperror"
)

// Error kinds. Every error returned by Service is an *apperror.AppError
// wrapping one of these, so callers can branch with errors.Is.
var (
	ErrInputValidation     = errors.New("input validation failed")
	ErrResourceNotFound    = errors.New("lab not found")
	ErrNotFound            = errors.New("booking not found")
	ErrResourceUnavailable = errors.New("lab unavailable")
	ErrCapacityExceeded    = errors.New("capacity exceeded")
	ErrSchedulingConflict  = errors.New("scheduling conflict")
	ErrAuthorization       = errors.New("not authorized")
	ErrInvalidState        = errors.New("invalid booking state")
)

// ConflictError names the booking already holding the requested slot.
// Booking is nil when the conflict was detected by the store itself.
type ConflictError struct {
	Booking *Booking
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func (e *ConflictError) Unwrap() error {
	return ErrSchedulingConflict
}

// ConflictDetails is the payload attached to conflict responses.
type ConflictDetails struct {
	BookingID     string    `json:"booking_id"`
	RequesterName string    `json:"requester_name"`
	Subject       string    `json:"subject"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
}

func validationError(message string) *apperror.AppError {
	return apperror.Wrap(ErrInputValidation, http.StatusBadRequest, message)
}

func labNotFoundError() *apperror.AppError {
	return apperror.Wrap(ErrResourceNotFound, http.StatusNotFound, "lab not found")
}

func notFoundError() *apperror.AppError {
	return apperror.Wrap(ErrNotFound, http.StatusNotFound, "booking not found")
}

func unavailableError(message string) *apperror.AppError {
	return apperror.Wrap(ErrResourceUnavailable, http.StatusConflict, message)
}

func capacityError(message string) *apperror.AppError {
	return apperror.Wrap(ErrCapacityExceeded, http.StatusUnprocessableEntity, message)
}

func authorizationError(message string) *apperror.AppError {
	return apperror.Wrap(ErrAuthorization, http.StatusForbidden, message)
}

func stateError(message string) *apperror.AppError {
	return apperror.Wrap(ErrInvalidState, http.StatusConflict, message)
}

func conflictError(occupant *Booking, message string) *apperror.AppError {
	appErr := apperror.Wrap(&ConflictError{Booking: occupant, Message: message}, http.StatusConflict, message)
	if occupant == nil {
		return appErr
	}
	return appErr.WithDetails(ConflictDetails{
		BookingID:     occupant.ID,
		RequesterName: occupant.Requester.Name,
		Subject:       occupant.Subject,
		StartTime:     occupant.StartTime,
		EndTime:       occupant.EndTime,
	})
}

// Kind returns a short label for err, used in metrics and availability responses.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInputValidation):
		return "validation"
	case errors.Is(err, ErrResourceNotFound):
		return "lab_not_found"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrResourceUnavailable):
		return "unavailable"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity"
	case errors.Is(err, ErrSchedulingConflict):
		return "conflict"
	case errors.Is(err, ErrAuthorization):
		return "forbidden"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	default:
		return "error"
	}
}
