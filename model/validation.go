package model

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Closed enumerations for participant fields. Anything outside these sets is
// rejected, never coerced.
var (
	ValidGrades      = []interface{}{"K", "1st", "2nd", "3rd", "4th", "5th", "6th", "7th", "8th", "9th", "10th", "11th", "12th"}
	ValidGenders     = []interface{}{"male", "female"}
	ValidShirtSizes  = []interface{}{"YS", "YM", "YL", "AS", "AM", "AL", "AXL"}
	ValidExperiences = []interface{}{"first-year", "beginner", "intermediate", "advanced"}
)

var phonePattern = regexp.MustCompile(`^[0-9()+\-. ]{7,20}$`)

// ValidateNewRegistration enforces the full business-rule set on a typed
// registration before any persistence or payment action. All violations are
// returned together, not just the first, so a caller can display them at once.
func ValidateNewRegistration(reg *Registration) error {
	return validation.ValidateStruct(reg,
		validation.Field(&reg.FirstName, validation.Required),
		validation.Field(&reg.LastName, validation.Required),
		validation.Field(&reg.Email, validation.Required, is.EmailFormat),
		validation.Field(&reg.Phone, validation.Required, validation.Match(phonePattern)),
		validation.Field(&reg.Age, validation.Required, validation.Min(4), validation.Max(19)),
		validation.Field(&reg.Grade, validation.Required, validation.In(ValidGrades...)),
		validation.Field(&reg.Gender, validation.Required, validation.In(ValidGenders...)),
		validation.Field(&reg.TShirtSize, validation.Required, validation.In(ValidShirtSizes...)),
		validation.Field(&reg.Experience, validation.Required, validation.In(ValidExperiences...)),
		validation.Field(&reg.GuardianName, validation.Required),
		validation.Field(&reg.GuardianPhone, validation.Required, validation.Match(phonePattern)),
		validation.Field(&reg.EventSlug, validation.Required, validation.In(EventSlugs()...)),
	)
}
