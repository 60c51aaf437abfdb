package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/hypermind/internal/apperr"
	"github.com/starford/hypermind/internal/checksum"
	"github.com/starford/hypermind/internal/models"
)

const (
	tmpPrefix = ".hypermind-tmp-"
	fileMode  = 0o644
	dirMode   = 0o755
)

// ErrOutsideRoot is returned for paths that do not resolve under the root.
var ErrOutsideRoot = fmt.Errorf("storage: path outside root: %w", apperr.ErrInvalidInput)

// FS is a Provider over one directory of the local disk.
type FS struct {
	root string
}

var _ Provider = (*FS)(nil)

// NewFS roots a provider at dir, creating the directory when missing.
func NewFS(dir string) (*FS, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: root %s: %w", dir, err)
	}
	if err := os.MkdirAll(root, dirMode); err != nil {
		return nil, fmt.Errorf("storage: root %s: %w", dir, err)
	}
	if info, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("storage: root %s: %w", dir, err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("storage: root %s is a file", dir)
	}
	return &FS{root: root}, nil
}

// resolve maps rel onto the disk. Absolute paths and paths climbing out of
// the root are refused with ErrOutsideRoot.
func (f *FS) resolve(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, rel)
	}
	abs := filepath.Join(f.root, rel)
	back, err := filepath.Rel(f.root, abs)
	if err != nil || back == ".." || strings.HasPrefix(back, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, rel)
	}
	return abs, nil
}

// Path returns where rel lives on disk.
func (f *FS) Path(rel string) (string, error) {
	return f.resolve(rel)
}

// List returns every file under dir whose name ends in ext, newest first.
// A dir that does not exist yet lists as empty. Half-written temp files
// are not reported.
func (f *FS) List(dir, ext string) ([]models.FileMeta, error) {
	base, err := f.resolve(dir)
	if err != nil {
		return nil, err
	}
	metas := []models.FileMeta{}
	walk := func(p string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir(), strings.HasPrefix(d.Name(), tmpPrefix), !strings.HasSuffix(d.Name(), ext):
			return nil
		}
		meta, err := f.describe(p, d)
		if err != nil {
			return err
		}
		metas = append(metas, meta)
		return nil
	}
	if err := filepath.WalkDir(base, walk); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return metas, nil
		}
		return nil, fmt.Errorf("storage: list %s: %w", dir, err)
	}
	sort.SliceStable(metas, func(i, j int) bool {
		a, b := metas[i], metas[j]
		if a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.Path < b.Path
		}
		return a.UpdatedAt.After(b.UpdatedAt)
	})
	return metas, nil
}

func (f *FS) describe(p string, d fs.DirEntry) (models.FileMeta, error) {
	info, err := d.Info()
	if err != nil {
		return models.FileMeta{}, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return models.FileMeta{}, err
	}
	rel, err := filepath.Rel(f.root, p)
	if err != nil {
		return models.FileMeta{}, err
	}
	return models.FileMeta{
		Path:      filepath.ToSlash(rel),
		Checksum:  checksum.Sum(data),
		Size:      info.Size(),
		UpdatedAt: info.ModTime(),
	}, nil
}

// Read returns the content of rel. A missing file yields an error matching
// fs.ErrNotExist.
func (f *FS) Read(rel string) ([]byte, error) {
	abs, err := f.resolve(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", rel, err)
	}
	return data, nil
}

// Write replaces rel with content in one rename, so the settings watcher
// and export downloads never observe a partial file.
func (f *FS) Write(rel string, content []byte) error {
	abs, err := f.resolve(rel)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("storage: write %s: %w", rel, err)
	}
	tmp, err := stage(dir, content)
	if err != nil {
		return fmt.Errorf("storage: write %s: %w", rel, err)
	}
	if err := os.Rename(tmp, abs); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("storage: write %s: %w", rel, err)
	}
	return nil
}

// stage writes content to a synced temp file in dir and returns its name.
func stage(dir string, content []byte) (string, error) {
	tmp, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return "", err
	}
	name := tmp.Name()
	err = tmp.Chmod(fileMode)
	if err == nil {
		_, err = tmp.Write(content)
	}
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(name)
		return "", err
	}
	return name, nil
}

// Delete removes rel.
func (f *FS) Delete(rel string) error {
	abs, err := f.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", rel, err)
	}
	return nil
}
