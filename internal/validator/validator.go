package validator

import (
	"errors"
	"regexp"
	"strings"

	"github.com/resumerelay/internal/model"
)

var (
	ErrMissingFields      = errors.New("missing required fields")
	ErrInvalidEmailFormat = errors.New("invalid email format")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Fields holds the raw text fields of an application form.
type Fields struct {
	Surname   string
	FirstName string
	Email     string
	Phone     string
	Position  string
	LinkedIn  string
}

// Validate checks the form fields and resume and returns the Submission they
// describe. It returns ErrMissingFields or ErrInvalidEmailFormat otherwise.
func Validate(f Fields, resume *model.ResumeFile) (*model.Submission, error) {
	sub := &model.Submission{
		Surname:   strings.TrimSpace(f.Surname),
		FirstName: strings.TrimSpace(f.FirstName),
		Email:     strings.TrimSpace(f.Email),
		Phone:     strings.TrimSpace(f.Phone),
		Position:  strings.TrimSpace(f.Position),
		Resume:    resume,
	}
	// LinkedIn is optional and rendered exactly as submitted.
	if strings.TrimSpace(f.LinkedIn) != "" {
		sub.LinkedIn = f.LinkedIn
	}

	for _, v := range []string{sub.Surname, sub.FirstName, sub.Email, sub.Phone, sub.Position} {
		if v == "" {
			return nil, ErrMissingFields
		}
	}
	if resume == nil || len(resume.Data) == 0 {
		return nil, ErrMissingFields
	}

	if !ValidEmail(sub.Email) {
		return nil, ErrInvalidEmailFormat
	}

	return sub, nil
}

// ValidEmail reports whether s has the shape local@domain.tld.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}
