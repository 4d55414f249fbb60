package relay

import "errors"

// Sentinel errors returned by the registry. The HTTP layer maps these to
// status codes; nothing below it knows about HTTP.
var (
	// ErrNotFound means the ticket does not exist.
	ErrNotFound = errors.New("ticket not found")

	// ErrConflict means the operation lost to an earlier one: a second
	// upload attempt, or a download while one is in progress.
	ErrConflict = errors.New("transfer already in progress")

	// ErrGone means the single-use side has been consumed: the download
	// already completed, or a producer handle was already taken.
	ErrGone = errors.New("transfer already consumed")

	// ErrForbidden means the upload key did not match.
	ErrForbidden = errors.New("wrong upload key")

	// ErrUnauthorized means an upgrade challenge failed or the ticket has
	// no intended uploader to challenge.
	ErrUnauthorized = errors.New("challenge failed")

	// ErrClosed is returned by pipe operations after the pipe was torn down.
	ErrClosed = errors.New("pipe closed")
)
