package errors

import stderrors "errors"

// Is is a convenience wrapper around the standard library errors.Is.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As is a convenience wrapper around the standard library errors.As.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// GetCode returns the code of the outermost VaultError in err's chain, or
// CodeUnknown.
func GetCode(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	var vErr VaultError
	if stderrors.As(err, &vErr) {
		return vErr.Code()
	}
	return CodeUnknown
}

// HasCode reports whether any VaultError in err's chain carries code.
// Unlike GetCode it looks past wrapping layers, so a NOT_FOUND surfaced
// under a TIMEOUT or LOAD_FAILED wrapper is still found.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if vErr, ok := err.(VaultError); ok && vErr.Code() == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// GetClassification returns the classification of the outermost VaultError,
// or ClassificationPermanent.
func GetClassification(err error) ErrorClassification {
	var vErr VaultError
	if err != nil && stderrors.As(err, &vErr) {
		return vErr.Classification()
	}
	return ClassificationPermanent
}

// IsRetryable reports whether err is classified as retryable.
func IsRetryable(err error) bool {
	return GetClassification(err).IsRetryable()
}
