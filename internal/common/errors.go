// Package common defines sentinel errors shared by the offline store, its
// services and the transport edges. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Storage errors. Any failure of the persistent store is surfaced wrapped
	// in ErrStorageUnavailable; the store never retries internally.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// Content errors.
	ErrNotCached          = errors.New("chapter not cached")
	ErrInvalidContentType = errors.New("invalid content type")
	ErrInvalidRole        = errors.New("invalid message role")
	ErrUnknownCollection  = errors.New("unknown collection")
	ErrDuplicateID        = errors.New("duplicate id")

	// Auth errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")

	// Sync errors.
	ErrSyncNotConfigured = errors.New("sync not configured")
)
