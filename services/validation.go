package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// TutorInput carries the caller-settable fields of a tutor. Phone, Subject
// and Bio are optional; an empty string means absent.
type TutorInput struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"required,max=255,email"`
	Phone   string `json:"phone" validate:"omitempty,max=15"`
	Subject string `json:"subject" validate:"omitempty,max=50"`
	Bio     string `json:"bio"`
}

// normalize trims every field, collapses runs of whitespace in the name and
// subject, and lower-cases the email so uniqueness does not depend on letter case.
func (in TutorInput) normalize() TutorInput {
	return TutorInput{
		Name:    strings.Join(strings.Fields(in.Name), " "),
		Email:   strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:   strings.TrimSpace(in.Phone),
		Subject: normalizeSubject(in.Subject),
		Bio:     strings.TrimSpace(in.Bio),
	}
}

// normalizeSubject is applied to stored subjects and to subject lookups alike.
func normalizeSubject(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateInput returns the first failing field as an *InvalidInputError.
func validateInput(in TutorInput) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate tutor input: %w", err)
	}
	fe := verrs[0]
	return &InvalidInputError{Field: fieldName(fe.Field()), Reason: reason(fe)}
}

func fieldName(structField string) string {
	return strings.ToLower(structField)
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
