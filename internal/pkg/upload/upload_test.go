package upload

import (
	"bytes"
	"image"
	"image/png"
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func fileHeader(t *testing.T, filename string, data []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	form, err := multipart.NewReader(&body, mw.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["file"][0]
}

func TestValidateImageBySniff(t *testing.T) {
	mime, err := ValidateImageBySniff("a.PNG", pngBytes(t))
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)

	_, err = ValidateImageBySniff("a.svg", []byte("<svg></svg>"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = ValidateImageBySniff("a.png", []byte("<html><body>hi</body></html>"))
	assert.ErrorIs(t, err, ErrScriptContent)

	_, err = ValidateImageBySniff("a.jpg", []byte("<?xml version=\"1.0\"?><svg/>"))
	assert.ErrorIs(t, err, ErrSVGContent)

	_, err = ValidateImageBySniff("a.jpg", []byte("plain text"))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestSanitizeFilename(t *testing.T) {
	name, err := SanitizeFilename("../../etc/A100.png")
	require.NoError(t, err)
	assert.Equal(t, "A100.png", name)

	name, err = SanitizeFilename(`C:\photos\B200.jpg`)
	require.NoError(t, err)
	assert.Equal(t, "B200.jpg", name)

	for _, bad := range []string{"", " ", ".", "..", "/"} {
		_, err := SanitizeFilename(bad)
		assert.ErrorIs(t, err, ErrInvalidFilename, bad)
	}
}

func TestStage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "temp")
	data := pngBytes(t)

	staged, err := Stage(fileHeader(t, "A100.png", data), dir)
	require.NoError(t, err)
	assert.Equal(t, "A100.png", staged.Filename)
	assert.Equal(t, "image/png", staged.Mime)
	assert.Equal(t, int64(len(data)), staged.Size)
	assert.Len(t, staged.Hash, 64)
	assert.Equal(t, ".png", filepath.Ext(staged.Path))

	onDisk, err := os.ReadFile(staged.Path)
	require.NoError(t, err)
	assert.Equal(t, data, onDisk)

	staged.Remove()
	assert.NoFileExists(t, staged.Path)
}

func TestStageRejects(t *testing.T) {
	dir := t.TempDir()

	_, err := Stage(nil, dir)
	assert.ErrorIs(t, err, ErrUploadTransport)

	_, err = Stage(fileHeader(t, "notes.txt", []byte("hello")), dir)
	assert.ErrorIs(t, err, ErrUnsupportedType)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
