package errors

import "fmt"

// VaultError extends error with a code, a retry classification and optional
// context metadata.
type VaultError interface {
	error

	// Code returns the error code identifying the failure kind.
	Code() ErrorCode

	// Classification returns whether the error is retryable or permanent.
	Classification() ErrorClassification

	// Message returns the human-readable message without the cause.
	Message() string

	// Context returns a copy of the attached metadata, or nil.
	Context() map[string]any

	// Unwrap returns the wrapped cause, or nil.
	Unwrap() error
}

// vaultError is the only VaultError implementation; construct it through the
// package functions.
type vaultError struct {
	code           ErrorCode
	classification ErrorClassification
	message        string
	context        map[string]any
	cause          error
}

// Error formats as "[CODE] message" or "[CODE] message: cause".
func (e *vaultError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.code, e.message)
}

func (e *vaultError) Code() ErrorCode                     { return e.code }
func (e *vaultError) Classification() ErrorClassification { return e.classification }
func (e *vaultError) Message() string                     { return e.message }
func (e *vaultError) Unwrap() error                       { return e.cause }

// Context returns a copy so callers cannot mutate the error.
func (e *vaultError) Context() map[string]any {
	return copyContext(e.context)
}

func copyContext(ctx map[string]any) map[string]any {
	if ctx == nil {
		return nil
	}
	out := make(map[string]any, len(ctx))
	for k, v := range ctx {
		out[k] = v
	}
	return out
}
