package course

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/smithy-go"
)

// Sentinel errors for the course package.
var (
	// ErrNoKnowledgeBase indicates no knowledge base client is configured.
	ErrNoKnowledgeBase = errors.New("course: knowledge base client not initialized")

	// ErrMissingAPIKey indicates the golf course API key was not provided.
	ErrMissingAPIKey = errors.New("course: API key is required")

	// ErrCourseNotFound indicates a search returned no courses.
	ErrCourseNotFound = errors.New("course: no matching course")
)

// APIError is a failed golf course API request.
type APIError struct {
	// StatusCode is the HTTP status, or 0 for transport failures.
	StatusCode int

	// Message describes the failure.
	Message string

	// Err is the underlying error, if any.
	Err error
}

func (e *APIError) Error() string {
	return "course: " + e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsAuth reports whether the key was rejected.
func (e *APIError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// KnowledgeError is a failed knowledge base call.
type KnowledgeError struct {
	Op  string
	Err error
}

func (e *KnowledgeError) Error() string {
	var apiErr smithy.APIError
	if errors.As(e.Err, &apiErr) {
		return fmt.Sprintf("Knowledge Base %s failed: %s: %s", e.Op, apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
	return fmt.Sprintf("Knowledge Base %s failed: %v", e.Op, e.Err)
}

func (e *KnowledgeError) Unwrap() error {
	return e.Err
}

// IsAccessDenied reports whether the knowledge base rejected the caller's credentials.
func (e *KnowledgeError) IsAccessDenied() bool {
	var apiErr smithy.APIError
	if !errors.As(e.Err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException":
		return true
	}
	return false
}
