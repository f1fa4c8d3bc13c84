package types

// InnoDB page framing constants, offsets from MySQL fil0fil.h / fsp0fsp.h.
const (
	FilHeaderSize  = 38 // FIL_PAGE_DATA
	FilTrailerSize = 8  // FIL_PAGE_DATA_END
	FspHeaderSize  = 24 // parsed prefix of the FSP header

	// FIL header field offsets
	FilPageChecksum = 0  // FIL_PAGE_SPACE_OR_CHKSUM (4 bytes)
	FilPageOffset   = 4  // FIL_PAGE_OFFSET (4 bytes)
	FilPagePrev     = 8  // FIL_PAGE_PREV (4 bytes)
	FilPageNext     = 12 // FIL_PAGE_NEXT (4 bytes)
	FilPageLSN      = 16 // FIL_PAGE_LSN (8 bytes)
	FilPageType     = 24 // FIL_PAGE_TYPE (2 bytes)
	FilPageFlushLSN = 26 // FIL_PAGE_FILE_FLUSH_LSN (8 bytes, page 0 of system tablespace only)
	FilPageSpaceID  = 34 // FIL_PAGE_SPACE_ID (4 bytes)

	// FSP header field offsets, relative to FilHeaderSize on page 0
	FspSpaceID   = 0
	FspNotUsed   = 4
	FspSize      = 8
	FspFreeLimit = 12
	FspFlags     = 16
	FspFragNUsed = 20

	// FilNull marks an absent prev/next page link.
	FilNull = 0xFFFFFFFF

	// DefaultPageSize is used when the FSP flags carry a zero ssize.
	DefaultPageSize = 16384

	// NoChecksumMagic disables checksum validation for a page
	// (innodb_checksum_algorithm=none writes this).
	NoChecksumMagic = 0xDEADBEEF
)

// SupportedPageSizes lists every page size the parser accepts.
var SupportedPageSizes = []uint32{4096, 8192, 16384, 32768, 65536}

// IsSupportedPageSize reports whether sz is a valid InnoDB page size.
func IsSupportedPageSize(sz uint32) bool {
	for _, s := range SupportedPageSizes {
		if s == sz {
			return true
		}
	}
	return false
}

// FilHeader is the 38-byte header framing every InnoDB page.
// All fields are stored big-endian on disk.
type FilHeader struct {
	Checksum   uint32
	PageNumber uint32
	PrevPage   uint32
	NextPage   uint32
	LSN        uint64
	PageType   PageType
	FlushLSN   uint64
	SpaceID    uint32
}

// HasPrev reports whether the page participates in a chain backwards.
func (h *FilHeader) HasPrev() bool { return h.PrevPage != FilNull }

// HasNext reports whether the page participates in a chain forwards.
func (h *FilHeader) HasNext() bool { return h.NextPage != FilNull }

// FilTrailer is the 8-byte trailer at the end of every page.
type FilTrailer struct {
	ChecksumLow uint32
	LSNLow32    uint32
}

// FspHeader is the file-space bookkeeping block at byte 38 of page 0.
type FspHeader struct {
	SpaceID   uint32
	Unused    uint32
	Size      uint32 // tablespace size in pages
	FreeLimit uint32
	Flags     uint32
	FragNUsed uint32
}

// FSP flag bit positions (MySQL/Percona layout).
const (
	FspFlagPostAntelope   = 1 << 0
	FspFlagZipSsizeShift  = 1
	FspFlagZipSsizeMask   = 0xF
	FspFlagPageSsizeShift = 6
	FspFlagPageSsizeMask  = 0xF
	FspFlagDataDir        = 1 << 10
	FspFlagShared         = 1 << 11
	FspFlagTemporary      = 1 << 12
	FspFlagEncryption     = 1 << 13

	// FspFlagFullCrc32Marker is bit 4 in the MariaDB 10.5+ layout; its
	// presence switches ssize decoding to bits 0-3.
	FspFlagFullCrc32Marker    = 1 << 4
	FspFlagFullCrc32SsizeMask = 0xF
)

// HasEncryptionFlag reports whether the MySQL/Percona encryption flag is set.
func (f *FspHeader) HasEncryptionFlag() bool {
	return f.Flags&FspFlagEncryption != 0
}
