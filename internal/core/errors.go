package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidIdentifier is returned for malformed coordinates.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrResolution is returned when a grouping cannot be resolved.
	ErrResolution = errors.New("resolution failed")

	// ErrIO is returned when an artifact cannot be placed in the repository.
	ErrIO = errors.New("io failure")

	// ErrIncompleteRepository is returned when a repository holds no binaries.
	ErrIncompleteRepository = errors.New("incomplete repository")
)

// IdentifierError reports which coordinate field was rejected.
type IdentifierError struct {
	Field string
	Value string
}

func (e *IdentifierError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

func (e *IdentifierError) Unwrap() error {
	return ErrInvalidIdentifier
}

// ResolutionError wraps the cause of a failed grouping resolution.
type ResolutionError struct {
	Grouping   string
	Coordinate string
	Err        error
}

func (e *ResolutionError) Error() string {
	if e.Coordinate != "" {
		return fmt.Sprintf("resolving %s in %s: %v", e.Coordinate, e.Grouping, e.Err)
	}
	return fmt.Sprintf("resolving %s: %v", e.Grouping, e.Err)
}

func (e *ResolutionError) Unwrap() []error {
	return []error{ErrResolution, e.Err}
}

// IOError reports a failed copy or write of a single artifact.
type IOError struct {
	Op         string
	Path       string
	Coordinate string
	Err        error
}

func (e *IOError) Error() string {
	if e.Coordinate != "" {
		return fmt.Sprintf("%s %s (%s): %v", e.Op, e.Path, e.Coordinate, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() []error {
	return []error{ErrIO, e.Err}
}

// IncompleteRepositoryError is returned by verification of an empty mirror.
type IncompleteRepositoryError struct {
	Root      string
	Extension string
}

func (e *IncompleteRepositoryError) Error() string {
	return fmt.Sprintf("offline repository is incomplete: no %s artifacts found under %s", e.Extension, e.Root)
}

func (e *IncompleteRepositoryError) Unwrap() error {
	return ErrIncompleteRepository
}
