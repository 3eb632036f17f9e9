// Package resolver maps owner identifiers to backing file paths under a
// storage root. Resolution is a pure string computation; it never touches the
// filesystem.
package resolver

import (
	"net/url"
	"path/filepath"
)

const (
	// Extension is appended to every resolved filename.
	Extension = ".dat"
	// DefaultName is the file stem used when the owner identifier is empty.
	DefaultName = "persistence"
)

// Resolver produces backing file paths for owners under a fixed root.
type Resolver struct {
	root string
}

// New creates a Resolver rooted at root.
func New(root string) *Resolver {
	return &Resolver{root: root}
}

// Root returns the directory resolved paths are placed in.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve returns the backing file path shared by every unit of owner.
// The owner is percent-encoded as a path segment, so distinct owners never
// share a file and the file always lands directly under Root.
func (r *Resolver) Resolve(owner string) string {
	if owner == "" {
		return filepath.Join(r.root, DefaultName+Extension)
	}
	return filepath.Join(r.root, url.PathEscape(owner)+Extension)
}

// Abs cleans path when it is absolute and joins it onto base otherwise.
func Abs(base, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}
