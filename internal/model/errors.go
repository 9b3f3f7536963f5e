package model

import "errors"

// Resolution-phase errors are terminal for the session bootstrap and are
// never retried automatically.
var (
	// ErrMissingTenant means no tenant key was supplied at all.
	ErrMissingTenant = errors.New("no tenant key specified")

	// ErrResolutionTimeout means the directory read did not complete within
	// the wait bound. The caller may offer a manual full re-resolution.
	ErrResolutionTimeout = errors.New("tenant resolution timed out")

	// ErrTenantNotFound means the directory has no entry for the key.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrConfigLoad means the directory entry was malformed or the
	// directory transport failed.
	ErrConfigLoad = errors.New("failed to load tenant configuration")
)

// Sync-phase and admin errors.
var (
	// ErrRemoteUnavailable is transient; the engine recovers through the
	// local mirror and never surfaces it to the user.
	ErrRemoteUnavailable = errors.New("remote store unavailable")

	// ErrAuthFailure leaves the session unauthenticated.
	ErrAuthFailure = errors.New("authentication failed")

	// ErrConfigParse is returned by the strict admin config parser for
	// malformed pasted descriptors. No heuristic repair is attempted.
	ErrConfigParse = errors.New("malformed configuration document")
)
