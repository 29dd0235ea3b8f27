package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"familytasks/internal/apperr"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

const (
	maxGroupNameLength = 100
	maxTitleLength     = 200
)

func fieldError(field, message string) error {
	return apperr.Validation(fmt.Sprintf("%s: %s", field, message))
}

// NormalizeEmail trims and lower-cases an address so invitations match
// regardless of how the inviter typed it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fieldError("email", "email is required")
	}
	if !emailRegex.MatchString(email) {
		return fieldError("email", "invalid email format")
	}
	return nil
}

// ValidateGroupName checks a family group name
func ValidateGroupName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fieldError("name", "name is required")
	}
	if utf8.RuneCountInString(name) > maxGroupNameLength {
		return fieldError("name", fmt.Sprintf("name must be at most %d characters", maxGroupNameLength))
	}
	return nil
}

// ValidateTaskTitle checks a task title
func ValidateTaskTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fieldError("title", "title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return fieldError("title", fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	}
	return nil
}

// RequireID rejects empty identifiers before they reach storage.
func RequireID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return fieldError(field, "is required")
	}
	return nil
}
