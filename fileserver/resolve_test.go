package fileserver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "file"), nil)

	root, err := NewRoot(dir)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(root.Dir()))

	_, err = NewRoot(filepath.Join(dir, "file"))
	assert.Error(t, err, "root is a file")
	_, err = NewRoot(filepath.Join(dir, "missing"))
	assert.Error(t, err, "root does not exist")
}

func TestRootResolve(t *testing.T) {
	var (
		base = t.TempDir()
		dir  = filepath.Join(base, "data")
	)
	writeFile(t, filepath.Join(dir, "a", "b.txt"), []byte("b"))
	writeFile(t, filepath.Join(base, "database", "x.txt"), []byte("x"))
	writeFile(t, filepath.Join(base, "outside.txt"), []byte("o"))
	require.NoError(t, os.Symlink(filepath.Join(base, "outside.txt"), filepath.Join(dir, "escape")))
	require.NoError(t, os.Symlink(base, filepath.Join(dir, "up")))
	require.NoError(t, os.Symlink("a/b.txt", filepath.Join(dir, "alias")))
	require.NoError(t, os.Symlink("gone", filepath.Join(dir, "broken")))

	root, err := NewRoot(dir)
	require.NoError(t, err)
	canon := func(p ...string) string { return filepath.Join(append([]string{root.Dir()}, p...)...) }

	tests := []struct {
		path string
		want string
		err  error
	}{
		{path: "a/b.txt", want: canon("a", "b.txt")},
		{path: "./a/../a/b.txt", want: canon("a", "b.txt")},
		{path: "alias", want: canon("a", "b.txt")},
		{path: "a", want: canon("a")},
		{path: "", want: canon()},
		{path: "../outside.txt", err: ErrPathEscape},
		{path: "../database/x.txt", err: ErrPathEscape},
		{path: "escape", err: ErrPathEscape},
		{path: "up/outside.txt", err: ErrPathEscape},
		{path: "missing.txt", err: ErrNotFound},
		{path: "broken", err: ErrNotFound},
		{path: "../missing.txt", err: ErrNotFound},
	}
	for _, test := range tests {
		got, err := root.Resolve(test.path)
		if test.err != nil {
			assert.ErrorIs(t, err, test.err, "path %q", test.path)
			continue
		}
		if assert.NoError(t, err, "path %q", test.path) {
			assert.Equal(t, test.want, got, "path %q", test.path)
		}
	}
}

// This test checks that resolution follows changes to the filesystem.
func TestRootResolveLive(t *testing.T) {
	var (
		base = t.TempDir()
		dir  = filepath.Join(base, "data")
		link = filepath.Join(dir, "link")
	)
	writeFile(t, filepath.Join(dir, "in.txt"), nil)
	writeFile(t, filepath.Join(base, "out.txt"), nil)
	root, err := NewRoot(dir)
	require.NoError(t, err)

	require.NoError(t, os.Symlink("in.txt", link))
	_, err = root.Resolve("link")
	require.NoError(t, err)

	require.NoError(t, os.Remove(link))
	require.NoError(t, os.Symlink(filepath.Join(base, "out.txt"), link))
	_, err = root.Resolve("link")
	require.ErrorIs(t, err, ErrPathEscape)
}

func TestRootContains(t *testing.T) {
	r := Root{dir: "/srv/data"}
	assert.True(t, r.contains("/srv/data"))
	assert.True(t, r.contains("/srv/data/x"))
	assert.False(t, r.contains("/srv/database"))
	assert.False(t, r.contains("/srv"))

	slash := Root{dir: "/"}
	assert.True(t, slash.contains("/etc/passwd"))
}
