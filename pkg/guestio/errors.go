package guestio

import "errors"

// Sentinel errors for schema decoding, surfacing as §7's JournalDecode kind
// when a journal does not parse under the current schema.
var (
	ErrSchemaVersion = errors.New("guestio: unsupported schema version")
	ErrTruncated     = errors.New("guestio: truncated encoding")
)
