package logger

import "log/slog"

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so ticket transfers
// can be correlated in aggregated logs.
const (
	KeyTicket     = "ticket"      // ticket ID (download path component)
	KeyUser       = "user"        // authed user name attached to a ticket
	KeyFilename   = "filename"    // advertised file name
	KeyTier       = "tier"        // admission tier: public, authenticated
	KeyRemoteAddr = "remote_addr" // client address as seen by the HTTP front
	KeyRequestID  = "request_id"  // chi request ID
	KeyBytes      = "bytes"       // byte count for a transfer leg
	KeyError      = "error"       // error message
)

// Ticket returns a slog.Attr for a ticket ID
func Ticket(id string) slog.Attr {
	return slog.String(KeyTicket, id)
}

// User returns a slog.Attr for an authed user name
func User(name string) slog.Attr {
	return slog.String(KeyUser, name)
}

// Filename returns a slog.Attr for the advertised file name
func Filename(name string) slog.Attr {
	return slog.String(KeyFilename, name)
}

// Tier returns a slog.Attr for the admission tier
func Tier(name string) slog.Attr {
	return slog.String(KeyTier, name)
}

// Bytes returns a slog.Attr for a transferred byte count
func Bytes(n int64) slog.Attr {
	return slog.Int64(KeyBytes, n)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
