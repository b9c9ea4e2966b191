package client

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dmitrijs2005/snapclient/internal/common"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const minPasswordLength = 6

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrorValidation, fmt.Sprintf(format, args...))
}

// ValidateEmail checks the address shape only.
func ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return invalid("email is required")
	}
	if !emailPattern.MatchString(email) {
		return invalid("email %q is not valid", email)
	}
	return nil
}

func ValidateLogin(req LoginRequest) error {
	if err := ValidateEmail(req.Email); err != nil {
		return err
	}
	if req.Password == "" {
		return invalid("password is required")
	}
	return nil
}

func ValidateRegistration(req RegisterRequest) error {
	if strings.TrimSpace(req.Username) == "" {
		return invalid("username is required")
	}
	if err := ValidateEmail(req.Email); err != nil {
		return err
	}
	if len(req.Password) < minPasswordLength {
		return invalid("password must be at least %d characters", minPasswordLength)
	}
	if req.Password != req.ConfirmPassword {
		return invalid("passwords do not match")
	}
	return nil
}

func ValidatePin(pin string) error {
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return invalid("pin is required")
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return invalid("pin must be numeric")
		}
	}
	return nil
}

func ValidateSnap(message string) error {
	if strings.TrimSpace(message) == "" {
		return invalid("snap message is required")
	}
	return nil
}
