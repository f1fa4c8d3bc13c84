package types

import "github.com/cockroachdb/errors"

// Error kinds surfaced by the parsing packages. Callers match with errors.Is.
var (
	// ErrTruncatedInput is returned when a buffer is shorter than the
	// structure being read from it.
	ErrTruncatedInput = errors.New("truncated input")

	// ErrPageOutOfRange is returned for reads past the last page.
	ErrPageOutOfRange = errors.New("page out of range")

	// ErrInvalidPageSize is returned when the FSP flags decode to a page
	// size outside the supported set.
	ErrInvalidPageSize = errors.New("invalid page size")

	// ErrTooSmall is returned when the backing storage holds less than
	// one page.
	ErrTooSmall = errors.New("file smaller than one page")

	// ErrUnsupportedFormat is returned for formats the parser refuses to
	// interpret, e.g. the JSON component_keyring_file.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrWrongKey is returned when the master key referenced by a
	// tablespace is not present in the keyring.
	ErrWrongKey = errors.New("master key not found in keyring")

	// ErrKeyUnwrapFailed is returned when the decrypted tablespace
	// key/IV fails its checksum.
	ErrKeyUnwrapFailed = errors.New("tablespace key unwrap failed")

	// ErrPayloadNotBlockAligned is returned when an encrypted page body
	// is too short to hold one whole cipher block.
	ErrPayloadNotBlockAligned = errors.New("payload not block aligned")

	// ErrSdiCorrupt is returned when an SDI record fails to decompress
	// or its lengths disagree.
	ErrSdiCorrupt = errors.New("sdi record corrupt")
)
