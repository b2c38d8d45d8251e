package common

import "fmt"

// APIError is an error with the HTTP status it should be rendered with.
// Cause is kept for errors.Is checks and logging and is never rendered.
type APIError struct {
	Status  int            `json:"-"`
	Message string         `json:"error"`
	Fields  map[string]any `json:"fields,omitempty"`
	Cause   error          `json:"-"`
}

func (e APIError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e APIError) Unwrap() error { return e.Cause }

// Body is the JSON document sent to the client.
func (e APIError) Body() map[string]any {
	body := map[string]any{"error": e.Message}
	if len(e.Fields) > 0 {
		body["fields"] = e.Fields
	}
	return body
}

func Errf(status int, format string, args ...any) APIError {
	return APIError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// NewAPIError creates an APIError with status, message, and optional fields
func NewAPIError(status int, message string, fields map[string]any) APIError {
	return APIError{
		Status:  status,
		Message: message,
		Fields:  fields,
	}
}

// Wrap attaches cause to a client-facing message.
func Wrap(status int, cause error, message string) APIError {
	return APIError{Status: status, Message: message, Cause: cause}
}
