package errors

import (
	stderrors "errors"
	"fmt"
)

// New creates a VaultError with the default classification for code.
//
// Example:
//
//	err := errors.New(errors.CodeProtectedFile, "dweb.json is managed by configure")
func New(code ErrorCode, message string) VaultError {
	return &vaultError{
		code:           code,
		classification: classify(code),
		message:        message,
	}
}

// Newf creates a VaultError with a formatted message.
func Newf(code ErrorCode, format string, args ...any) VaultError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps err with a code and message. The classification of a wrapped
// VaultError is preserved. Returns nil if err is nil.
//
// Example:
//
//	h, err := driver.Open(ctx, opts)
//	if err != nil {
//	    return errors.Wrap(err, errors.CodeLoadFailure, "failed to open vault")
//	}
func Wrap(err error, code ErrorCode, message string) VaultError {
	if err == nil {
		return nil
	}

	classification := classify(code)
	var vErr VaultError
	if stderrors.As(err, &vErr) {
		classification = vErr.Classification()
	}

	return &vaultError{
		code:           code,
		classification: classification,
		message:        message,
		cause:          err,
	}
}

// Wrapf wraps err with a formatted message. Returns nil if err is nil.
func Wrapf(err error, code ErrorCode, format string, args ...any) VaultError {
	if err == nil {
		return nil
	}
	return Wrap(err, code, fmt.Sprintf(format, args...))
}
