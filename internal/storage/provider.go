// Package storage defines the file-system abstraction used for settings
// and exports.
package storage

import "github.com/starford/hypermind/internal/models"

// Provider is the interface for file operations under a root directory.
type Provider interface {
	// List returns metadata for every file under dir with the given
	// extension (any extension when ext is empty).
	List(dir, ext string) ([]models.FileMeta, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Path resolves path to an absolute location under the root.
	Path(path string) (string, error)
}
