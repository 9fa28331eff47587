package errors

// ErrorCode represents a specific failure kind.
type ErrorCode string

const (
	// Addressing and input errors.

	// CodeAddress indicates a malformed vault address or version suffix.
	CodeAddress ErrorCode = "ADDRESS_INVALID"

	// CodeInvalidPath indicates a path failed the allow-list or the
	// trailing-separator rule for files.
	CodeInvalidPath ErrorCode = "INVALID_PATH"

	// CodeInvalidInput indicates an argument other than a path or address was
	// rejected, such as malformed manifest settings.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// Permission errors.

	// CodeNotWritable indicates a mutation was attempted without the write
	// capability or against a fixed historical version.
	CodeNotWritable ErrorCode = "NOT_WRITABLE"

	// CodeProtectedFile indicates a mutation targeted the reserved manifest.
	CodeProtectedFile ErrorCode = "PROTECTED_FILE_NOT_WRITABLE"

	// Storage errors surfaced from the collaborator.

	// CodeNotFound indicates the requested entry does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeNotADirectory indicates a directory operation hit a file.
	CodeNotADirectory ErrorCode = "NOT_A_DIRECTORY"

	// CodeAlreadyExists indicates the target already exists.
	CodeAlreadyExists ErrorCode = "ALREADY_EXISTS"

	// CodeNotEmpty indicates a non-recursive rmdir of a populated directory.
	CodeNotEmpty ErrorCode = "DIRECTORY_NOT_EMPTY"

	// Lifecycle errors.

	// CodeTimeout indicates an operation did not settle within its deadline.
	// The outcome of the underlying operation is unknown.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeLoadFailure indicates the store failed to open or the first sync
	// wait failed.
	CodeLoadFailure ErrorCode = "LOAD_FAILED"

	// CodeNetwork indicates peers could not supply requested data.
	CodeNetwork ErrorCode = "NETWORK_ERROR"

	// CodeClosed indicates the vault or handle was already closed.
	CodeClosed ErrorCode = "CLOSED"

	// System errors.

	// CodeNotImplemented indicates the operation is not supported yet.
	CodeNotImplemented ErrorCode = "NOT_IMPLEMENTED"

	// CodeInternal indicates an internal failure.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeUnknown indicates an unclassified error.
	CodeUnknown ErrorCode = "UNKNOWN"
)

// ErrorClassification indicates whether retrying may succeed.
type ErrorClassification string

const (
	// ClassificationRetryable marks temporary failures.
	ClassificationRetryable ErrorClassification = "RETRYABLE"

	// ClassificationPermanent marks failures that will not succeed on retry.
	ClassificationPermanent ErrorClassification = "PERMANENT"
)

// IsRetryable reports whether the classification allows a retry.
func (c ErrorClassification) IsRetryable() bool {
	return c == ClassificationRetryable
}

var retryableCodes = map[ErrorCode]bool{
	CodeTimeout: true,
	CodeNetwork: true,
}

// classify returns the default classification for a code. Anything not
// listed as retryable is permanent.
func classify(code ErrorCode) ErrorClassification {
	if retryableCodes[code] {
		return ClassificationRetryable
	}
	return ClassificationPermanent
}
