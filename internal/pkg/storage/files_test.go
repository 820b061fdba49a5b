package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoveFileCreatesTargetDir(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "upload.tmp")
	dst := filepath.Join(dir, "originals", "widget.png")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o644))

	require.NoError(t, MoveFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
	assert.NoFileExists(t, src)
}

func TestMoveFileOverwrites(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "new")
	dst := filepath.Join(dir, "old")
	require.NoError(t, os.WriteFile(src, []byte("new"), 0o644))
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0o644))

	require.NoError(t, MoveFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestWriteFileAtomicLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "250", "a.jpg")

	require.NoError(t, WriteFileAtomic(target, []byte("jpeg")))

	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.jpg", entries[0].Name())
}

func TestRemoveIfExists(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "x.png")
	require.NoError(t, os.WriteFile(p, nil, 0o644))

	removed, err := RemoveIfExists(p)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = RemoveIfExists(p)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.jpg", ".hidden", TempPrefix + "123"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	names, err := ListFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "b.png"}, names)

	_, err = ListFiles(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCopyFileKeepsSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.png")
	dst := filepath.Join(dir, "staging", "out.png")
	require.NoError(t, os.WriteFile(src, []byte("pixels"), 0o644))

	require.NoError(t, CopyFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(data))
	assert.FileExists(t, src)

	assert.Error(t, CopyFile(filepath.Join(dir, "nope"), dst))
}

func TestCheckDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), []byte("x"), 0o644))

	h := CheckDir("250", dir)
	assert.True(t, h.Healthy)
	assert.True(t, h.Writable)
	assert.Equal(t, 1, h.Files)
	assert.Empty(t, h.Error)

	files, err := ListFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png"}, files, "probe file is removed")

	h = CheckDir("80", filepath.Join(dir, "missing"))
	assert.False(t, h.Healthy)
	assert.NotEmpty(t, h.Error)

	h = CheckDir("80", filepath.Join(dir, "a.png"))
	assert.False(t, h.Healthy)
	assert.Equal(t, "not a directory", h.Error)
}
