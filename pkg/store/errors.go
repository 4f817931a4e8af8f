// Copyright 2025 Certen Protocol
//
// Sentinel errors for store operations.

package store

import "errors"

var (
	// ErrBundleNotFound is returned when a requested bundle id has no row.
	ErrBundleNotFound = errors.New("bundle not found")

	// ErrTxNotFound is returned when a requested transaction id has no row.
	ErrTxNotFound = errors.New("transaction not found")
)
