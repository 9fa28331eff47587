// Package vault is the client access layer over a versioned, append-only
// vault.
//
// A Vault is constructed from an address and loads in the background. Every
// operation waits for loading to finish, then runs against the vault's
// checkout: the live head of the log, or a fixed historical version when the
// address carries one ("dweb://<key>+3"). Each call is bounded by a timeout
// that stops waiting without cancelling the underlying work, so a timed-out
// mutation has an unknown outcome.
//
// Mutations are refused with CodeNotWritable on historical checkouts and on
// vaults whose write key is held elsewhere. Paths are percent-decoded and
// normalized for every call; mutations additionally validate them and refuse
// the reserved manifest path.
//
//	v, err := vault.Create(ctx, vault.CreateParams{LocalPath: dir, Title: "Notes"})
//	if err != nil {
//		return err
//	}
//	defer v.Close()
//
//	if err := v.WriteFile(ctx, "/hello.txt", []byte("hello")); err != nil {
//		return err
//	}
//	history, err := v.History(ctx, vault.WithReverse())
package vault
