package license

import "errors"

var (
	// ErrLedgerMissing indicates the export file is absent or could not be parsed.
	ErrLedgerMissing = errors.New("license export not found")

	// ErrPoolExhausted indicates the requested bucket of the local pool is empty.
	ErrPoolExhausted = errors.New("no license keys available")

	// ErrKeyNotFound indicates the key is not present in the store that was searched.
	ErrKeyNotFound = errors.New("license key not found")

	// ErrDuplicateKey indicates the key is already stored in the target bucket.
	ErrDuplicateKey = errors.New("license key already stored")

	// ErrPersistFailed indicates a store could not be written.
	ErrPersistFailed = errors.New("failed to persist license keys")

	// ErrMalformedInput indicates unparseable JSON, an unrecognized shape, or a bad argument.
	ErrMalformedInput = errors.New("malformed input")
)
