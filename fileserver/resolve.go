package fileserver

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Root is the served directory. It is always absolute and has symlinks resolved.
// A Root is immutable and safe to share between connection handlers.
type Root struct {
	dir string
}

// NewRoot canonicalizes dir and checks that it is a directory.
func NewRoot(dir string) (Root, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Root{}, err
	}
	canon, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return Root{}, err
	}
	info, err := os.Stat(canon)
	if err != nil {
		return Root{}, err
	}
	if !info.IsDir() {
		return Root{}, fmt.Errorf("%s is not a directory", canon)
	}
	return Root{dir: canon}, nil
}

// Dir returns the canonical root directory.
func (r Root) Dir() string {
	return r.dir
}

// Resolve joins rel onto the root and resolves the result against the live
// filesystem. The returned path is guaranteed to be the root or a descendant of it,
// both lexically and after following symlinks.
func (r Root) Resolve(rel string) (string, error) {
	if r.dir == "" {
		return "", errors.New("uninitialized root")
	}
	full, err := filepath.EvalSymlinks(filepath.Join(r.dir, rel))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %q", ErrNotFound, rel)
		}
		return "", fmt.Errorf("%w: %q: %v", ErrPathEscape, rel, err)
	}
	full, err = filepath.Abs(full)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrPathEscape, rel, err)
	}
	if !r.contains(full) {
		return "", fmt.Errorf("%w: %q", ErrPathEscape, rel)
	}
	return full, nil
}

// contains reports whether p is the root or lies below it. The comparison is done on
// whole path elements, so /srv/data does not contain /srv/database.
func (r Root) contains(p string) bool {
	if p == r.dir {
		return true
	}
	prefix := r.dir
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(p, prefix)
}
