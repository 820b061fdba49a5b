// Package upload validates multipart image uploads and stages them on disk
// until they are ingested.
package upload

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

const sniffLen = 512

// ErrUploadTransport means the upload itself was missing or broken.
var ErrUploadTransport = errors.New("upload transport error")

// ErrInvalidFilename is returned for names that cannot be stored.
var ErrInvalidFilename = errors.New("invalid upload filename")

// StagedFile is an upload copied to the staging directory.
type StagedFile struct {
	Path     string `json:"-"`
	Filename string `json:"filename"`
	Mime     string `json:"mime"`
	Size     int64  `json:"size"`
	Hash     string `json:"hash"`
}

// Remove deletes the staged copy. Safe to call after it was moved away.
func (s StagedFile) Remove() {
	if s.Path == "" {
		return
	}
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		log.Warnf("[Upload] Failed to remove staged file %s: %v", s.Path, err)
	}
}

// SanitizeFilename keeps the base name and rejects names that are empty
// or only dots.
func SanitizeFilename(name string) (string, error) {
	name = strings.ReplaceAll(name, `\`, "/")
	name = strings.TrimSpace(filepath.Base(filepath.FromSlash(name)))
	if name == "" || name == "." || name == ".." || name == string(filepath.Separator) || strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	return name, nil
}

// Stage copies fh into dir under a random name. The file is sniffed
// before anything is written and removed again if the copy fails.
func Stage(fh *multipart.FileHeader, dir string) (StagedFile, error) {
	if fh == nil {
		return StagedFile{}, fmt.Errorf("%w: no file", ErrUploadTransport)
	}
	filename, err := SanitizeFilename(fh.Filename)
	if err != nil {
		return StagedFile{}, err
	}

	src, err := fh.Open()
	if err != nil {
		return StagedFile{}, fmt.Errorf("%w: %v", ErrUploadTransport, err)
	}
	defer src.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(src, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return StagedFile{}, fmt.Errorf("%w: %v", ErrUploadTransport, err)
	}
	head = head[:n]
	mime, err := ValidateImageBySniff(filename, head)
	if err != nil {
		return StagedFile{}, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return StagedFile{}, fmt.Errorf("failed to create staging dir: %w", err)
	}
	path := filepath.Join(dir, uuid.New().String()+strings.ToLower(filepath.Ext(filename)))
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return StagedFile{}, fmt.Errorf("failed to create staged file: %w", err)
	}
	staged := StagedFile{Path: path, Filename: filename, Mime: mime}

	hasher := sha256.New()
	w := io.MultiWriter(dst, hasher)
	written, err := io.Copy(w, io.MultiReader(bytes.NewReader(head), src))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		staged.Remove()
		return StagedFile{}, fmt.Errorf("%w: %v", ErrUploadTransport, err)
	}
	if fh.Size > 0 && written != fh.Size {
		staged.Remove()
		return StagedFile{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrUploadTransport, fh.Size, written)
	}

	staged.Size = written
	staged.Hash = hex.EncodeToString(hasher.Sum(nil))
	return staged, nil
}
