package repository

import "errors"

var (
	// ErrImageNotFound is returned when no record exists for a filename.
	ErrImageNotFound = errors.New("image not found")
	// ErrStoreWriteConflict means the record changed between read and write.
	ErrStoreWriteConflict = errors.New("store write conflict")
	// ErrItemCodeMismatch is returned when a record is made preferred for an
	// item code other than its own.
	ErrItemCodeMismatch = errors.New("image belongs to a different item code")
)
