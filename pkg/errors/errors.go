package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInternal     ErrorCode = "INTERNAL"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"
	ErrCanceled     ErrorCode = "CANCELED"

	// Configuration errors
	ErrConfigLoad         ErrorCode = "CONFIG_LOAD"
	ErrConfigParse        ErrorCode = "CONFIG_PARSE"
	ErrConfigInvalid      ErrorCode = "CONFIG_INVALID"
	ErrInvalidRuntimePath ErrorCode = "INVALID_RUNTIME_PATTERN"

	// Planning errors
	ErrDuplicateArtifact ErrorCode = "DUPLICATE_ARTIFACT"
	ErrDuplicateOverride ErrorCode = "DUPLICATE_OVERRIDE"

	// Materialization errors
	ErrUnreadableSource          ErrorCode = "UNREADABLE_SOURCE"
	ErrUnwritableTarget          ErrorCode = "UNWRITABLE_TARGET"
	ErrLinkCapabilityUnavailable ErrorCode = "LINK_CAPABILITY_UNAVAILABLE"
	ErrArchiveInvalid            ErrorCode = "ARCHIVE_INVALID"

	// Elevated link service errors
	ErrProtocol ErrorCode = "PROTOCOL"

	// State errors
	ErrStateLoad  ErrorCode = "STATE_LOAD"
	ErrStateWrite ErrorCode = "STATE_WRITE"

	// Cleanup errors
	ErrCleanup ErrorCode = "CLEANUP"
)

// Reasons attached to ErrLinkCapabilityUnavailable under the "reason" detail.
const (
	ReasonUnsupportedPlatform = "unsupported-platform"
	ReasonNoFreePort          = "no-free-port"
	ReasonHelperStartFailed   = "helper-start-failed"
	ReasonHelperRefused       = "helper-refused"
)

// DistError carries a stable code, a message, optional structured details
// and the underlying cause.
type DistError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

func (e *DistError) Error() string {
	head := "[" + string(e.Code) + "] " + e.Message
	if e.Wrapped == nil {
		return head
	}
	return head + ": " + e.Wrapped.Error()
}

func (e *DistError) Unwrap() error { return e.Wrapped }

// Is matches any *DistError with the same code, so a bare New(code, "")
// works as a sentinel for errors.Is.
func (e *DistError) Is(target error) bool {
	t, ok := target.(*DistError)
	return ok && t.Code == e.Code
}

func build(code ErrorCode, message string, cause error) *DistError {
	return &DistError{Code: code, Message: message, Details: map[string]interface{}{}, Wrapped: cause}
}

func New(code ErrorCode, message string) *DistError {
	return build(code, message, nil)
}

func Newf(code ErrorCode, format string, args ...interface{}) *DistError {
	return build(code, fmt.Sprintf(format, args...), nil)
}

// Wrap attaches code and message to err. A nil err yields nil.
func Wrap(err error, code ErrorCode, message string) *DistError {
	if err == nil {
		return nil
	}
	return build(code, message, err)
}

func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *DistError {
	if err == nil {
		return nil
	}
	return build(code, fmt.Sprintf(format, args...), err)
}

// WithDetail sets one detail and returns e for chaining.
func (e *DistError) WithDetail(key string, value interface{}) *DistError {
	return e.WithDetails(map[string]interface{}{key: value})
}

func (e *DistError) WithDetails(details map[string]interface{}) *DistError {
	if e.Details == nil {
		e.Details = make(map[string]interface{}, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithReason sets the "reason" detail read back by Reason.
func (e *DistError) WithReason(reason string) *DistError {
	return e.WithDetail("reason", reason)
}

func find(err error) *DistError {
	var de *DistError
	if errors.As(err, &de) {
		return de
	}
	return nil
}

// IsErrorCode reports whether the outermost DistError in err's chain has code.
func IsErrorCode(err error, code ErrorCode) bool {
	de := find(err)
	return de != nil && de.Code == code
}

// GetErrorCode returns the code of the outermost DistError in err's chain,
// or ErrUnknown.
func GetErrorCode(err error) ErrorCode {
	if de := find(err); de != nil {
		return de.Code
	}
	return ErrUnknown
}

func GetErrorDetails(err error) map[string]interface{} {
	if de := find(err); de != nil {
		return de.Details
	}
	return nil
}

// Reason returns the "reason" detail of err, or "".
func Reason(err error) string {
	reason, _ := GetErrorDetails(err)["reason"].(string)
	return reason
}
