package model

import "errors"

// Error kinds for the extraction engine. Callers match with errors.Is and
// decide retry vs skip vs abort per stream policy.
var (
	// ErrConfig marks an invalid or contradictory stream definition. Fatal before any I/O.
	ErrConfig = errors.New("config error")

	// ErrUnsupportedProtocol marks a URI scheme with no registered provider.
	ErrUnsupportedProtocol = errors.New("unsupported protocol")

	// ErrNoMatch marks a glob pattern that matched zero objects.
	ErrNoMatch = errors.New("no objects matched")

	// ErrAuth marks an authentication/authorization failure opening a source.
	ErrAuth = errors.New("authentication failed")

	// ErrNotFound marks a missing source object.
	ErrNotFound = errors.New("object not found")

	// ErrTransientIO marks a retryable I/O failure.
	ErrTransientIO = errors.New("transient I/O error")

	// ErrDecode marks malformed input at record or file level.
	ErrDecode = errors.New("decode error")

	// ErrSchemaConflict marks a record value incompatible with a frozen schema.
	ErrSchemaConflict = errors.New("schema conflict")
)
