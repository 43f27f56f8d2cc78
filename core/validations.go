package core

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}

		return name
	})

	return v
}

func ValidateEvent(event Event) error {
	event.Normalize()

	err := validate.Struct(event)
	if err != nil {
		return translate(err)
	}

	return ValidateInterval(event.StartTime, event.EndTime)
}

func ValidateAttendee(attendee Attendee) error {
	attendee.Normalize()

	err := validate.Struct(attendee)
	if err != nil {
		return translate(err)
	}

	if !attendee.Status.Valid() {
		return fmt.Errorf("%w: unknown attendance status %d", ErrValidation, int(attendee.Status))
	}

	return nil
}

// ValidateInterval rejects empty and inverted intervals.
func ValidateInterval(start time.Time, end time.Time) error {
	if !end.After(start) {
		return fmt.Errorf("%w: end time must be after start time", ErrValidation)
	}

	return nil
}

func translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}

	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s is too long (%s characters tops)", field, fe.Param())
	case "email":
		return field + " must be a valid email address"
	default:
		return fmt.Sprintf("%s failed on %s", field, fe.Tag())
	}
}
