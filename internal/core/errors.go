package core

import "errors"

var (
	// ErrUploadNotFound is returned when no Upload Job has the given id.
	ErrUploadNotFound = errors.New("upload not found")

	// ErrUploadInProgress is returned when a job is still pending or already being retried.
	ErrUploadInProgress = errors.New("upload is still in progress")

	// ErrNotFound is returned by stores when a referenced record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateRecord is returned by stores on a uniqueness violation.
	ErrDuplicateRecord = errors.New("duplicate record")

	// ErrUnknownKind is returned for a kind that is not registered.
	ErrUnknownKind = errors.New("unknown upload type")

	// ErrCompanyNotFound is returned when the target company does not exist.
	ErrCompanyNotFound = errors.New("company not found")

	// ErrRowErrorNotFound is returned when resolving a row error that is not stored.
	ErrRowErrorNotFound = errors.New("row error not found")
)
