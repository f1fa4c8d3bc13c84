// Package page parses the fixed framing structures of InnoDB pages: the
// FIL header and trailer, the FSP header of page 0, and the vendor and
// page-size information derived from the FSP flags.
package page

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/yamaru/innodb-ibd-tool/internal/reader"
	"github.com/yamaru/innodb-ibd-tool/internal/types"
)

// DetectVendor derives the server family from the FSP flags of page 0 and,
// when available, a redo-log creator string. The full_crc32 case must come
// from the flags because it changes the checksum algorithm and location;
// the other distinctions are informational.
func DetectVendor(fspFlags uint32, creator string) types.Vendor {
	// Bit 4 set is impossible in the MySQL layout (it would put the zip
	// ssize past its maximum), so together with a clean upper half it
	// identifies the MariaDB full_crc32 flag layout.
	if fspFlags&types.FspFlagFullCrc32Marker != 0 && fspFlags>>16 == 0 {
		return types.Vendor{Kind: types.VendorMariaDB, Format: types.MariaDBFullCrc32}
	}
	if strings.Contains(creator, "MariaDB") {
		return types.Vendor{Kind: types.VendorMariaDB, Format: types.MariaDBLegacy}
	}
	if strings.Contains(creator, "Percona") || strings.Contains(creator, "XtraDB") {
		return types.Vendor{Kind: types.VendorPercona}
	}
	return types.Vendor{Kind: types.VendorMySQL}
}

// PageSizeFromFlags decodes the physical page size from the FSP flags.
// MySQL and Percona keep the ssize in bits 6-9; MariaDB full_crc32 keeps
// it in bits 0-3. A zero ssize means the 16384 default.
func PageSizeFromFlags(fspFlags uint32, vendor types.Vendor) (uint32, error) {
	var ssize uint32
	if vendor.IsFullCrc32() {
		ssize = fspFlags & types.FspFlagFullCrc32SsizeMask
	} else {
		ssize = (fspFlags >> types.FspFlagPageSsizeShift) & types.FspFlagPageSsizeMask
	}
	size := uint32(types.DefaultPageSize)
	if ssize != 0 {
		size = 1 << (ssize + 9)
	}
	if !types.IsSupportedPageSize(size) {
		return 0, errors.Wrapf(types.ErrInvalidPageSize,
			"fsp flags 0x%08x decode to %d", fspFlags, size)
	}
	return size, nil
}

// ParseFilHeader parses the 38-byte header at the start of a page.
func ParseFilHeader(buf []byte) (*types.FilHeader, error) {
	r := reader.New(buf)
	if r.Len() < types.FilHeaderSize {
		return nil, errors.Wrapf(types.ErrTruncatedInput,
			"fil header needs %d bytes, have %d", types.FilHeaderSize, r.Len())
	}
	checksum, _ := r.Uint32(types.FilPageChecksum)
	pageNo, _ := r.Uint32(types.FilPageOffset)
	prev, _ := r.Uint32(types.FilPagePrev)
	next, _ := r.Uint32(types.FilPageNext)
	lsn, _ := r.Uint64(types.FilPageLSN)
	ptype, _ := r.Uint16(types.FilPageType)
	flushLSN, _ := r.Uint64(types.FilPageFlushLSN)
	spaceID, _ := r.Uint32(types.FilPageSpaceID)
	return &types.FilHeader{
		Checksum:   checksum,
		PageNumber: pageNo,
		PrevPage:   prev,
		NextPage:   next,
		LSN:        lsn,
		PageType:   types.PageType(ptype),
		FlushLSN:   flushLSN,
		SpaceID:    spaceID,
	}, nil
}

// ParseFilTrailer parses the 8-byte trailer at the end of a full page.
func ParseFilTrailer(pageBuf []byte, pageSize uint32) (*types.FilTrailer, error) {
	if uint32(len(pageBuf)) < pageSize || pageSize < types.FilTrailerSize {
		return nil, errors.Wrapf(types.ErrTruncatedInput,
			"fil trailer needs a full %d-byte page, have %d", pageSize, len(pageBuf))
	}
	r := reader.New(pageBuf)
	checksumLow, _ := r.Uint32(int(pageSize) - 8)
	lsnLow, _ := r.Uint32(int(pageSize) - 4)
	return &types.FilTrailer{ChecksumLow: checksumLow, LSNLow32: lsnLow}, nil
}

// ParseFspHeader parses the file-space header that begins at byte 38 of
// page 0.
func ParseFspHeader(page0 []byte) (*types.FspHeader, error) {
	r := reader.New(page0)
	if r.Len() < types.FilHeaderSize+types.FspHeaderSize {
		return nil, errors.Wrapf(types.ErrTruncatedInput,
			"fsp header needs %d bytes, have %d",
			types.FilHeaderSize+types.FspHeaderSize, r.Len())
	}
	base := types.FilHeaderSize
	spaceID, _ := r.Uint32(base + types.FspSpaceID)
	unused, _ := r.Uint32(base + types.FspNotUsed)
	size, _ := r.Uint32(base + types.FspSize)
	freeLimit, _ := r.Uint32(base + types.FspFreeLimit)
	flags, _ := r.Uint32(base + types.FspFlags)
	fragNUsed, _ := r.Uint32(base + types.FspFragNUsed)
	return &types.FspHeader{
		SpaceID:   spaceID,
		Unused:    unused,
		Size:      size,
		FreeLimit: freeLimit,
		Flags:     flags,
		FragNUsed: fragNUsed,
	}, nil
}
