package fixtures

import (
	"bytes"
	"encoding/binary"

	"github.com/klauspost/compress/zlib"

	"github.com/yamaru/innodb-ibd-tool/internal/types"
)

// SdiRawRecord is one record to place on an SDI leaf page. Payload holds
// the bytes stored on that page, which may be fewer than CompLen when the
// record continues on overflow pages.
type SdiRawRecord struct {
	Type      uint32
	ID        uint64
	UncompLen uint32
	CompLen   uint32
	Payload   []byte
}

// ZlibCompress deflates data into a zlib stream.
func ZlibCompress(data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		panic(err)
	}
	if err := w.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

const (
	sdiPageLevelOffset = types.FilHeaderSize + 26
	sdiPageNRecsOffset = types.FilHeaderSize + 16

	infimumOrigin  = 99
	supremumOrigin = 112

	firstRecordOrigin = 128
)

// sdiPageSkeleton frames an empty compact index page: FIL header, level,
// and the infimum/supremum system records with an empty chain.
func sdiPageSkeleton(pageSize uint32, pageType types.PageType, pageNo, prev, next uint32, level uint16) []byte {
	buf := BlankPage(pageSize)
	SetFilHeader(buf, types.FilHeader{
		PageNumber: pageNo,
		PrevPage:   prev,
		NextPage:   next,
		PageType:   pageType,
	})
	binary.BigEndian.PutUint16(buf[sdiPageLevelOffset:], level)

	// infimum: record type 2, next pointing at supremum until records
	// are linked in.
	buf[infimumOrigin-3] = 2
	binary.BigEndian.PutUint16(buf[infimumOrigin-2:], uint16(supremumOrigin-infimumOrigin))
	copy(buf[infimumOrigin:], "infimum\x00")

	// supremum: record type 3, next pointer zero.
	buf[supremumOrigin-3] = 3
	binary.BigEndian.PutUint16(buf[supremumOrigin-2:], 0)
	copy(buf[supremumOrigin:], "supremum")

	return buf
}

// BuildSdiLeafPage lays out a level-0 SDI page with the given records
// linked through the compact record chain.
func BuildSdiLeafPage(pageSize uint32, pageNo, prev, next uint32, recs []SdiRawRecord) []byte {
	buf := sdiPageSkeleton(pageSize, types.PageTypeSdi, pageNo, prev, next, 0)
	binary.BigEndian.PutUint16(buf[sdiPageNRecsOffset:], uint16(len(recs)))

	origin := firstRecordOrigin
	prevOrigin := infimumOrigin
	for _, rec := range recs {
		// link the previous record to this one
		binary.BigEndian.PutUint16(buf[prevOrigin-2:], uint16(origin-prevOrigin))

		buf[origin-3] = 0 // ordinary record
		binary.BigEndian.PutUint32(buf[origin:], rec.Type)
		binary.BigEndian.PutUint64(buf[origin+4:], rec.ID)
		binary.BigEndian.PutUint32(buf[origin+12:], rec.UncompLen)
		binary.BigEndian.PutUint32(buf[origin+16:], rec.CompLen)
		copy(buf[origin+20:], rec.Payload)

		prevOrigin = origin
		origin += 20 + len(rec.Payload) + 5
	}
	binary.BigEndian.PutUint16(buf[prevOrigin-2:], uint16(supremumOrigin-prevOrigin))
	return buf
}

// BuildSdiInternalPage lays out a non-leaf SDI page holding a single
// node pointer record down to child.
func BuildSdiInternalPage(pageSize uint32, pageNo, child uint32, level uint16) []byte {
	buf := sdiPageSkeleton(pageSize, types.PageTypeSdi, pageNo, types.FilNull, types.FilNull, level)
	binary.BigEndian.PutUint16(buf[sdiPageNRecsOffset:], 1)

	origin := firstRecordOrigin
	binary.BigEndian.PutUint16(buf[infimumOrigin-2:], uint16(origin-infimumOrigin))
	buf[origin-3] = 1 // node pointer record
	binary.BigEndian.PutUint32(buf[origin+12:], child)
	binary.BigEndian.PutUint16(buf[origin-2:], uint16(supremumOrigin-origin))
	return buf
}

// BuildSdiBlobPage lays out an overflow page whose body continues a
// record payload.
func BuildSdiBlobPage(pageSize uint32, pageNo, next uint32, chunk []byte) []byte {
	buf := BlankPage(pageSize)
	SetFilHeader(buf, types.FilHeader{
		PageNumber: pageNo,
		PrevPage:   types.FilNull,
		NextPage:   next,
		PageType:   types.PageTypeSdiBlobChain,
	})
	copy(buf[types.FilHeaderSize:pageSize-types.FilTrailerSize], chunk)
	return buf
}

// SetSdiRoot stamps the SDI version marker and root page number on a
// page-0 buffer. The offset mirrors the extractor's geometry: FIL
// header, FSP header, then the extent descriptor array.
func SetSdiRoot(page0 []byte, pageSize uint32, rootPage uint32) {
	extentPages := uint32(64)
	if pageSize <= 16384 {
		extentPages = (1 << 20) / pageSize
	}
	off := types.FilHeaderSize + 112 + 40*int(pageSize/extentPages)
	binary.BigEndian.PutUint32(page0[off:], 1)
	binary.BigEndian.PutUint32(page0[off+4:], rootPage)
}

// LeafBodyCapacity returns how many payload bytes fit on a leaf page for
// a single record placed at the first record origin.
func LeafBodyCapacity(pageSize uint32) int {
	return int(pageSize) - types.FilTrailerSize - (firstRecordOrigin + 20)
}

// BlobBodyCapacity returns how many payload bytes one overflow page
// carries.
func BlobBodyCapacity(pageSize uint32) int {
	return int(pageSize) - types.FilHeaderSize - types.FilTrailerSize
}
