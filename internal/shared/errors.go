package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the caller's role does not allow the action.
	ErrForbidden = errors.New("permission denied")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInactiveAccount indicates the account has not been activated yet.
	ErrInactiveAccount = errors.New("account not activated")
	// ErrInvalidToken indicates an invalid, expired or already consumed activation token.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// ValidationErrors carries field level messages for form submissions.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	return "validation failed"
}

// Add records a message for field unless one is already present.
func (v ValidationErrors) Add(field, message string) {
	if _, exists := v[field]; exists {
		return
	}
	v[field] = message
}

// AsValidation extracts field errors from err.
func AsValidation(err error) (ValidationErrors, bool) {
	var verr ValidationErrors
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

// UserSafeMessage maps an error to text that can be shown in a flash message.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "The requested record was not found."
	case errors.Is(err, ErrForbidden):
		return "You do not have permission to perform this action."
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid username or password."
	case errors.Is(err, ErrInactiveAccount):
		return "Your account is not activated. Please check your email."
	case errors.Is(err, ErrInvalidToken):
		return "Invalid activation link or token."
	}
	if _, ok := AsValidation(err); ok {
		return "Please correct the errors below."
	}
	return "Something went wrong. Please try again."
}
