package booking

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	dateLayout      = "2006-01-02"
	wallClockLayout = "15:04"
)

// Request is the booking form: a lab, a calendar date and a wall-clock window
// interpreted in the service's time zone.
type Request struct {
	LabID       string `json:"lab_id" validate:"required,uuid"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime   string `json:"start_time" validate:"required,wallclock"`
	EndTime     string `json:"end_time" validate:"required,wallclock"`
	SystemCount int    `json:"system_count" validate:"required,min=1"`
	Subject     string `json:"subject" validate:"required,max=200"`
	// RequesterID books on behalf of another user. Empty means the actor.
	RequesterID string `json:"requester_id,omitempty" validate:"omitempty,uuid"`
}

// Slot is the absolute interval and size a request asks for.
type Slot struct {
	LabID       string
	Start       time.Time
	End         time.Time
	SystemCount int
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	messages := make([]string, 0, len(v))
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// RequestValidator checks Request values against their schema.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// Only fails on a programming error in the tag name.
	if err := v.RegisterValidation("wallclock", validateWallClock); err != nil {
		panic(err)
	}

	return &RequestValidator{validate: v}
}

func validateWallClock(fl validator.FieldLevel) bool {
	s := strings.TrimSpace(fl.Field().String())
	if len(s) != len(wallClockLayout) {
		return false
	}
	_, err := time.Parse(wallClockLayout, s)
	return err == nil
}

// Validate returns an input validation error listing every failed field.
func (v *RequestValidator) Validate(req Request) error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return validationError(err.Error())
	}

	errs := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, ValidationError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return validationError(errs.Error()).WithDetails(errs)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "uuid":
		return "must be a UUID"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "wallclock":
		return "must be a 24-hour time in HH:MM format"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

// Slot combines the date and wall-clock times in loc into an absolute interval.
func (r Request) Slot(loc *time.Location) (Slot, error) {
	if loc == nil {
		loc = time.UTC
	}

	start, err := time.ParseInLocation(dateLayout+" "+wallClockLayout, r.Date+" "+strings.TrimSpace(r.StartTime), loc)
	if err != nil {
		return Slot{}, validationError("invalid date or start_time")
	}
	end, err := time.ParseInLocation(dateLayout+" "+wallClockLayout, r.Date+" "+strings.TrimSpace(r.EndTime), loc)
	if err != nil {
		return Slot{}, validationError("invalid date or end_time")
	}

	return Slot{
		LabID:       r.LabID,
		Start:       start,
		End:         end,
		SystemCount: r.SystemCount,
	}, nil
}
