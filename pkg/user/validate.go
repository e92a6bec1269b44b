package user

import (
	"net/mail"
	"strings"
)

// FieldError is a validation failure scoped to a single input field.
// It is returned to the client as data so the UI can render per-field
// feedback, never as a transport-level error.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func IsValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	// mail.ParseAddress accepts "Name <addr>" forms, reject those
	return err == nil && addr.Address == email
}

func ValidateRegister(input RegisterInput) []FieldError {
	if !IsValidEmail(input.Email) {
		return []FieldError{{Field: "email", Message: "Invalid email."}}
	}
	if len(input.Username) <= 2 {
		return []FieldError{{Field: "username", Message: "Username must be 3 characters or greater."}}
	}
	if strings.Contains(input.Username, "@") {
		return []FieldError{{Field: "username", Message: "Username cannot include an '@' sign."}}
	}
	return ValidatePassword(input.Password, "password")
}

// ValidatePassword is shared by register and changePassword; the field
// name differs between the two mutations.
func ValidatePassword(password, field string) []FieldError {
	if len(password) <= 2 {
		return []FieldError{{Field: field, Message: "Password must be 3 characters or greater."}}
	}
	return nil
}
