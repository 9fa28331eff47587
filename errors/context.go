package errors

import stderrors "errors"

// WithContext returns a copy of err with key set in its context. A plain
// error is first converted to a VaultError with CodeUnknown.
// Returns nil if err is nil.
//
// Example:
//
//	err = errors.WithContext(err, "path", "/one.txt")
func WithContext(err error, key string, value any) VaultError {
	return WithContextMap(err, map[string]any{key: value})
}

// WithContextMap merges fields into the context of err. New fields override
// existing ones with the same key. Returns nil if err is nil.
func WithContextMap(err error, fields map[string]any) VaultError {
	if err == nil {
		return nil
	}

	base := asVaultError(err)
	merged := copyContext(base.Context())
	if merged == nil {
		merged = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		merged[k] = v
	}

	return &vaultError{
		code:           base.Code(),
		classification: base.Classification(),
		message:        base.Message(),
		context:        merged,
		cause:          base.Unwrap(),
	}
}

func asVaultError(err error) VaultError {
	var vErr VaultError
	if stderrors.As(err, &vErr) {
		return vErr
	}
	return &vaultError{
		code:           CodeUnknown,
		classification: ClassificationPermanent,
		message:        err.Error(),
		cause:          err,
	}
}
