// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Topiq Contributors

package store

import "errors"

// Sentinel errors for store operations.
// These errors can be checked using errors.Is() for classification.
var (
	// ErrNotFound indicates the requested topic or alias does not exist
	// (or has expired).
	ErrNotFound = errors.New("not found")

	// ErrUnavailable indicates the underlying persistence layer cannot
	// be reached. Callers degrade to cache-miss behavior rather than
	// failing the query.
	ErrUnavailable = errors.New("store unavailable")

	// ErrInvalidInput indicates the input parameters are invalid or malformed.
	ErrInvalidInput = errors.New("invalid input")
)
