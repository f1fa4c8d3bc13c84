// Package fixtures builds binary test artifacts: InnoDB pages, keyring
// files, SDI page chains, and redo log blocks.
package fixtures

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/yamaru/innodb-ibd-tool/internal/types"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// BlankPage returns an all-zero page of the given size.
func BlankPage(pageSize uint32) []byte {
	return make([]byte, pageSize)
}

// SetFilHeader writes the FIL header fields into a page buffer.
func SetFilHeader(pageBuf []byte, h types.FilHeader) {
	binary.BigEndian.PutUint32(pageBuf[types.FilPageChecksum:], h.Checksum)
	binary.BigEndian.PutUint32(pageBuf[types.FilPageOffset:], h.PageNumber)
	binary.BigEndian.PutUint32(pageBuf[types.FilPagePrev:], h.PrevPage)
	binary.BigEndian.PutUint32(pageBuf[types.FilPageNext:], h.NextPage)
	binary.BigEndian.PutUint64(pageBuf[types.FilPageLSN:], h.LSN)
	binary.BigEndian.PutUint16(pageBuf[types.FilPageType:], uint16(h.PageType))
	binary.BigEndian.PutUint64(pageBuf[types.FilPageFlushLSN:], h.FlushLSN)
	binary.BigEndian.PutUint32(pageBuf[types.FilPageSpaceID:], h.SpaceID)
}

// SetFilTrailer writes the trailer of a page: the low checksum word and
// the low 32 bits of the LSN.
func SetFilTrailer(pageBuf []byte, pageSize uint32, checksumLow, lsnLow uint32) {
	binary.BigEndian.PutUint32(pageBuf[pageSize-8:], checksumLow)
	binary.BigEndian.PutUint32(pageBuf[pageSize-4:], lsnLow)
}

// SetFspHeader writes the FSP header fields at byte 38 of a page-0
// buffer.
func SetFspHeader(pageBuf []byte, f types.FspHeader) {
	base := types.FilHeaderSize
	binary.BigEndian.PutUint32(pageBuf[base+types.FspSpaceID:], f.SpaceID)
	binary.BigEndian.PutUint32(pageBuf[base+types.FspNotUsed:], f.Unused)
	binary.BigEndian.PutUint32(pageBuf[base+types.FspSize:], f.Size)
	binary.BigEndian.PutUint32(pageBuf[base+types.FspFreeLimit:], f.FreeLimit)
	binary.BigEndian.PutUint32(pageBuf[base+types.FspFlags:], f.Flags)
	binary.BigEndian.PutUint32(pageBuf[base+types.FspFragNUsed:], f.FragNUsed)
}

// Page0 builds a page 0 with the given FSP flags and space id, framed as
// an FSP_HDR page.
func Page0(pageSize uint32, flags uint32, spaceID uint32) []byte {
	buf := BlankPage(pageSize)
	SetFilHeader(buf, types.FilHeader{
		PageNumber: 0,
		PrevPage:   types.FilNull,
		NextPage:   types.FilNull,
		PageType:   types.PageTypeFspHdr,
		SpaceID:    spaceID,
	})
	SetFspHeader(buf, types.FspHeader{
		SpaceID: spaceID,
		Size:    1,
		Flags:   flags,
	})
	return buf
}

// StampCrc32c stores the MySQL split CRC-32C checksum and the trailer
// LSN copy so the page validates cleanly.
func StampCrc32c(pageBuf []byte, pageSize uint32) {
	lsn := binary.BigEndian.Uint64(pageBuf[types.FilPageLSN:])
	binary.BigEndian.PutUint32(pageBuf[pageSize-4:], uint32(lsn))
	c1 := crc32.Checksum(pageBuf[types.FilPageOffset:types.FilPageFlushLSN], castagnoli)
	c2 := crc32.Checksum(pageBuf[types.FilHeaderSize:pageSize-types.FilTrailerSize], castagnoli)
	binary.BigEndian.PutUint32(pageBuf[types.FilPageChecksum:], c1^c2)
}

// StampFullCrc32 stores the MariaDB full_crc32 tail checksum.
func StampFullCrc32(pageBuf []byte, pageSize uint32) {
	calc := crc32.Checksum(pageBuf[:pageSize-4], castagnoli)
	binary.LittleEndian.PutUint32(pageBuf[pageSize-4:], calc)
}
