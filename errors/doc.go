// Package errors provides the structured error taxonomy used by the vault
// access layer.
//
// Every error returned from a public vault operation is a VaultError carrying
// an ErrorCode. Codes are stable strings so callers can branch on them and
// serialize them without depending on message text:
//
//	data, err := v.ReadFile(ctx, "/hello.txt")
//	if errors.HasCode(err, errors.CodeTimeout) {
//	    // outcome unknown, the read may still settle later
//	}
//
// Errors from the storage collaborator keep their original chain, so the
// standard library errors.Is and errors.As work through any wrapping done by
// this package.
package errors
