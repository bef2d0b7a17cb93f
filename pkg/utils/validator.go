package utils

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9._\-]{2,64}$`)
	controlChars  = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidateUsername accepts 2-64 letters, digits, dots, dashes and underscores
func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("invalid username: %s", username)
	}
	return nil
}

// SanitizeFilename keeps the base name of an uploaded file and strips control characters
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = controlChars.ReplaceAllString(filepath.Base(name), "")
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == "/" || name == ".." {
		return "invoice.pdf"
	}
	return name
}
