// Package storage loads the source tables from CSV files or a SQLite database.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Validation errors.
var (
	ErrNilContext      = errors.New("context cannot be nil")
	ErrEmptyString     = errors.New("string parameter cannot be empty")
	ErrInvalidTable    = errors.New("invalid table name")
	ErrEmptyHeader     = errors.New("table has no header")
	ErrDuplicateColumn = errors.New("duplicate column in header")
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTableName only admits plain SQL identifiers, since table names are
// interpolated into queries.
func validateTableName(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidTable, name)
	}
	return nil
}

// validateHeader rejects empty and repeated column names.
func validateHeader(columns []string) error {
	if len(columns) == 0 {
		return ErrEmptyHeader
	}

	seen := make(map[string]bool, len(columns))
	for i, c := range columns {
		if c == "" {
			return fmt.Errorf("%w: column %d has no name", ErrEmptyHeader, i+1)
		}
		if seen[c] {
			return fmt.Errorf("%w: %q", ErrDuplicateColumn, c)
		}
		seen[c] = true
	}
	return nil
}
