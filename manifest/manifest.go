// Package manifest reads, validates and writes the reserved metadata record
// stored at the root of every vault.
package manifest

import (
	"bytes"
	"context"
	"encoding/json"

	verrors "github.com/jmgilman/go/dweb/errors"
	"github.com/jmgilman/go/dweb/store"
)

const (
	// Filename is the manifest's name at the vault root.
	Filename = "dweb.json"
	// Path is the manifest's absolute vault path.
	Path = "/" + Filename
)

// Manifest is the vault metadata record.
type Manifest struct {
	URL         string  `json:"url,omitempty"`
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Type        Types   `json:"type,omitempty"`
	Author      *Author `json:"author,omitempty"`
}

// Types is an ordered list of type tags. A scalar string in JSON decodes to a
// one element list.
type Types []string

// UnmarshalJSON accepts a string or a list of strings.
func (t *Types) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*t = nil
		} else {
			*t = Types{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*t = many
	return nil
}

// Author is a name, optionally with a URL. It encodes as a bare string when
// URL is empty and as {name, url} otherwise.
type Author struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (a Author) MarshalJSON() ([]byte, error) {
	if a.URL == "" {
		return json.Marshal(a.Name)
	}
	type plain Author
	return json.Marshal(plain(a))
}

// UnmarshalJSON accepts a string or an object.
func (a *Author) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*a = Author{Name: name}
		return nil
	}
	type plain Author
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = Author(p)
	return nil
}

// Patch lists the manifest fields to change. Nil fields are left alone.
type Patch struct {
	Title       *string
	Description *string
	Type        Types
	Author      *Author
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Type == nil && p.Author == nil
}

// Apply returns a copy of m with the patch applied.
func (p Patch) Apply(m Manifest) Manifest {
	if p.Title != nil {
		m.Title = *p.Title
	}
	if p.Description != nil {
		m.Description = *p.Description
	}
	if p.Type != nil {
		m.Type = append(Types(nil), p.Type...)
	}
	if p.Author != nil {
		a := *p.Author
		m.Author = &a
	}
	return m
}

// Writer is the part of a store handle needed to persist a manifest.
type Writer interface {
	WriteFile(ctx context.Context, name string, data []byte) error
}

// Read loads and decodes the manifest visible through r.
func Read(ctx context.Context, r store.Reader) (*Manifest, error) {
	data, err := r.ReadFile(ctx, Path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Decode parses and validates manifest JSON.
func Decode(data []byte) (*Manifest, error) {
	if err := ValidateJSON(data); err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, verrors.Wrap(err, verrors.CodeInvalidInput, "manifest is not valid JSON")
	}
	return &m, nil
}

// Encode validates m and renders it as indented JSON.
func Encode(m Manifest) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, verrors.Wrap(err, verrors.CodeInternal, "failed to encode manifest")
	}
	if err := ValidateJSON(buf.Bytes()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write validates m and writes it to the manifest path.
func Write(ctx context.Context, w Writer, m Manifest) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	return w.WriteFile(ctx, Path, data)
}

// Update reads the current manifest through r, applies p and writes the
// result through w. A missing manifest is treated as empty.
func Update(ctx context.Context, r store.Reader, w Writer, p Patch) error {
	current, err := Read(ctx, r)
	if err != nil {
		if !verrors.HasCode(err, verrors.CodeNotFound) {
			return err
		}
		current = &Manifest{}
	}
	return Write(ctx, w, p.Apply(*current))
}
