package contextutils

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)

// IsValidEmail checks if an email address is valid using go-playground/validator
func IsValidEmail(email string) bool {
	return validate.Var(email, "email") == nil
}

// IsValidUsername checks that a username is 3-30 characters of letters, digits or underscore
func IsValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}
