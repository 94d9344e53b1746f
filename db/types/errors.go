package types

import (
	"errors"
	"fmt"

	"github.com/glebarez/go-sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DuplicateError represents an error when attempting to create a record that
// already exists.
type DuplicateError struct {
	ModelName string
	ID        string
}

func (e DuplicateError) Error() string {
	return fmt.Sprintf("%s with %s already exists", e.ModelName, e.ID)
}

// InvalidInputError represents an error due to invalid input data.
type InvalidInputError struct {
	Msg string
}

func (e InvalidInputError) Error() string {
	return e.Msg
}

// LoadError is returned when records couldn't be queried.
type LoadError struct {
	ModelName string
	Err       error
}

func (e LoadError) Error() string {
	return fmt.Sprintf("failed loading %s: %s", e.ModelName, e.Err)
}

// Unwrap returns the underlying error.
func (e LoadError) Unwrap() error {
	return e.Err
}

// NoResultError is returned when a lookup matches no records.
type NoResultError struct {
	ModelName string
	ID        string
}

func (e NoResultError) Error() string {
	return fmt.Sprintf("%s with %s doesn't exist", e.ModelName, e.ID)
}

// AmbiguousError is returned when a lookup that should match a single record
// matches several.
type AmbiguousError struct {
	ModelName string
	ID        string
	Count     int
}

func (e AmbiguousError) Error() string {
	return fmt.Sprintf("%s returns %d %s records; make the filter more specific", e.ID, e.Count, e.ModelName)
}

// ScanError is returned when a record couldn't be read into Go types.
type ScanError struct {
	ModelName string
	Err       error
}

func (e ScanError) Error() string {
	return fmt.Sprintf("failed scanning %s data: %s", e.ModelName, e.Err)
}

// Unwrap returns the underlying error.
func (e ScanError) Unwrap() error {
	return e.Err
}

// Err converts an expected error returned by SQLite into one of the error
// types above. Other errors are returned unchanged.
func Err(modelName, id string, err error) error {
	var sqlErr *sqlite.Error
	if !errors.As(err, &sqlErr) {
		return err
	}

	switch sqlErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return DuplicateError{ModelName: modelName, ID: id}
	}

	return err
}
