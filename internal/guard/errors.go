package guard

import (
	"errors"
	"net/http"
	"strings"
)

// ForbiddenCode is the JSON-RPC error code carried by project access rejections.
const ForbiddenCode = -32040

var (
	// ErrProjectNotSpecified rejects unscoped reads when more than one project is allowed.
	ErrProjectNotSpecified = errors.New("project must be specified")
	// ErrUnresolvedProjectKey marks a configured project key missing from the remote directory.
	ErrUnresolvedProjectKey = errors.New("failed to resolve project key")
	// ErrInconsistentGuardConfig marks a guard configuration that must not start.
	ErrInconsistentGuardConfig = errors.New("inconsistent project guard configuration")
	// ErrAlreadyInitialized is returned when Initialize runs more than once.
	ErrAlreadyInitialized = errors.New("project guard directory already initialized")
)

// ForbiddenData is the diagnostic payload attached to a project access rejection.
type ForbiddenData struct {
	AllowedProjectIDs   []int  `json:"allowedProjectIds"`
	RequestedProjectID  int    `json:"requestedProjectId,omitempty"`
	RequestedProjectKey string `json:"requestedProjectKey,omitempty"`
	RequestedProjectIDs []int  `json:"requestedProjectIds,omitempty"`
}

// ForbiddenError rejects a tool call targeting a project outside the allow-list.
type ForbiddenError struct {
	Message string
	Data    ForbiddenData
}

// Error implements error.
func (e *ForbiddenError) Error() string {
	if e == nil {
		return ""
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		return msg
	}
	return "project access forbidden"
}

// Code returns the JSON-RPC error code.
func (e *ForbiddenError) Code() int {
	return ForbiddenCode
}

// StatusCode returns the HTTP status used by the HTTP transport.
func (e *ForbiddenError) StatusCode() int {
	return http.StatusForbidden
}

// ErrorData returns the structured diagnostic payload.
func (e *ForbiddenError) ErrorData() any {
	if e == nil {
		return nil
	}
	return e.Data
}

// IsForbidden reports whether err is (or wraps) a project access rejection.
func IsForbidden(err error) bool {
	var forbidden *ForbiddenError
	return errors.As(err, &forbidden)
}
