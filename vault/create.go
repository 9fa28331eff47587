package vault

import (
	"context"
	"errors"
	"io/fs"
	"os"

	verrors "github.com/jmgilman/go/dweb/errors"
	"github.com/jmgilman/go/dweb/manifest"
	"github.com/jmgilman/go/dweb/names"
)

// CreateParams configures Create.
type CreateParams struct {
	// LocalPath persists the vault. It must not exist or be an empty
	// directory. Empty keeps the vault in memory.
	LocalPath string

	Title       string
	Description string
	Type        manifest.Types
	Author      *manifest.Author

	Options []Option
}

// LoadParams configures Load.
type LoadParams struct {
	// LocalPath is the directory of an existing vault. Required.
	LocalPath string

	Options []Option
}

// Create makes a new vault owned by this process and writes its manifest.
func Create(ctx context.Context, p CreateParams) (*Vault, error) {
	if p.LocalPath != "" {
		if err := checkCreateTarget(p.LocalPath); err != nil {
			return nil, err
		}
	}

	v, err := New("", withLocalPath(p.Options, p.LocalPath)...)
	if err != nil {
		return nil, err
	}
	if err := v.Ready(ctx); err != nil {
		_ = v.Close()
		return nil, err
	}

	c, _ := v.loader.loaded()
	m := manifest.Manifest{
		URL:         v.URL(),
		Title:       p.Title,
		Description: p.Description,
		Type:        p.Type,
		Author:      p.Author,
	}
	if err := manifest.Write(ctx, c.handle, m); err != nil {
		_ = v.Close()
		return nil, verrors.Wrap(err, verrors.CodeInternal, "failed to write manifest")
	}

	v.logger.Info("created vault", "key", v.Key(), "path", p.LocalPath)
	return v, nil
}

// Load opens the vault stored at a local directory.
func Load(ctx context.Context, p LoadParams) (*Vault, error) {
	if p.LocalPath == "" {
		return nil, verrors.New(verrors.CodeInvalidInput, "a local path is required")
	}
	st, err := os.Stat(p.LocalPath)
	if err != nil || !st.IsDir() {
		return nil, verrors.WithContext(
			verrors.New(verrors.CodeNotFound, "no directory exists at the given location"),
			"path", p.LocalPath,
		)
	}

	v, err := New("", withLocalPath(p.Options, p.LocalPath)...)
	if err != nil {
		return nil, err
	}
	if err := v.Ready(ctx); err != nil {
		_ = v.Close()
		return nil, err
	}
	return v, nil
}

// ResolveName maps a name to a vault key using the default resolver.
func ResolveName(ctx context.Context, name string) (string, error) {
	return names.Default().Resolve(ctx, name)
}

func withLocalPath(opts []Option, dir string) []Option {
	return append(append([]Option(nil), opts...), WithLocalPath(dir))
}

func checkCreateTarget(dir string) error {
	st, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return verrors.WithContext(verrors.Wrap(err, verrors.CodeInternal, "failed to inspect target"), "path", dir)
	}
	if !st.IsDir() {
		return verrors.WithContext(
			verrors.New(verrors.CodeAlreadyExists, "a file exists at the target location"),
			"path", dir,
		)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return verrors.WithContext(verrors.Wrap(err, verrors.CodeInternal, "failed to list target"), "path", dir)
	}
	if len(entries) > 0 {
		return verrors.WithContext(
			verrors.New(verrors.CodeAlreadyExists, "the target directory is not empty"),
			"path", dir,
		)
	}
	return nil
}
