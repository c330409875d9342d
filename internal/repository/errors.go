// Package repository implements the persistence layer against MySQL.
// This file defines the sentinel errors shared by the repositories so
// that the service layer can branch on failure modes without parsing
// driver errors.
package repository

import "errors"

// ErrEmailExists is returned when an insert would violate the unique
// email constraint. The service surfaces this as a conflict.
var ErrEmailExists = errors.New("email already used")

// ErrNotFound is returned when a lookup matches no row. Repositories
// translate sql.ErrNoRows into this so callers never depend on
// database/sql directly.
var ErrNotFound = errors.New("not found")
