package storage

import (
	"os"
	"time"
)

// DirHealth is the state of one variant directory
type DirHealth struct {
	Key       string    `json:"key"`
	Path      string    `json:"path"`
	Healthy   bool      `json:"healthy"`
	Writable  bool      `json:"writable"`
	Files     int       `json:"files"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// CheckDir verifies that dir exists, is a directory and accepts writes.
// The probe file uses TempPrefix so listings never see it.
func CheckDir(key, dir string) DirHealth {
	h := DirHealth{Key: key, Path: dir, CheckedAt: time.Now().UTC()}

	info, err := os.Stat(dir)
	if err != nil {
		h.Error = err.Error()
		return h
	}
	if !info.IsDir() {
		h.Error = "not a directory"
		return h
	}

	probe, err := os.CreateTemp(dir, TempPrefix+"health-*")
	if err != nil {
		h.Error = err.Error()
	} else {
		h.Writable = true
		_ = probe.Close()
		_ = os.Remove(probe.Name())
	}

	files, err := ListFiles(dir)
	if err != nil {
		h.Error = err.Error()
		return h
	}
	h.Files = len(files)
	h.Healthy = h.Writable
	return h
}
