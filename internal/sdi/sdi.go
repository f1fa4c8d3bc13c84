// Package sdi locates and extracts the serialized dictionary information
// embedded in MySQL 8.0+ tablespaces: it walks the SDI index page chain,
// reassembles record payloads that span overflow pages, and inflates the
// zlib-compressed JSON documents.
package sdi

import (
	"bytes"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zlib"

	"github.com/yamaru/innodb-ibd-tool/internal/reader"
	"github.com/yamaru/innodb-ibd-tool/internal/tablespace"
	"github.com/yamaru/innodb-ibd-tool/internal/types"
)

// INDEX page header offsets relative to the end of the FIL header
// (page0page.h).
const (
	pageNDirSlots = 0
	pageHeapTop   = 2
	pageNHeap     = 4
	pageNRecs     = 16
	pageLevel     = 26
	pageIndexID   = 28

	pageHeaderSize = 36
	fsegHeaderSize = 20

	// Compact-format system record origins.
	infimumOffset  = types.FilHeaderSize + pageHeaderSize + fsegHeaderSize + 5 // 99
	supremumOffset = infimumOffset + 13                                        // 112

	// Record header fields relative to the record origin.
	recNextOffset = 2 // 2 bytes immediately before the origin
	recTypeOffset = 3 // low 3 bits of the byte 3 before the origin

	recTypeOrdinary = 0
	recTypeNodePtr  = 1
	recTypeInfimum  = 2
	recTypeSupremum = 3

	// SDI record body layout (leaf records).
	sdiFieldType      = 0
	sdiFieldID        = 4
	sdiFieldUncompLen = 12
	sdiFieldCompLen   = 16
	sdiFieldData      = 20

	// Node pointer records carry the 12-byte key then the child page.
	nodePtrChildOffset = 12

	expectedSdiVersion = 1
)

// Result is a full extraction: every record that decoded cleanly plus one
// error per record that did not. A corrupt record never aborts the rest.
type Result struct {
	Records []types.SdiRecord
	Errors  []error
}

// Extractor walks SDI pages of a tablespace. It borrows the page source
// for the duration of each call.
type Extractor struct {
	src tablespace.PageSource
}

// NewExtractor creates an Extractor over src.
func NewExtractor(src tablespace.PageSource) *Extractor {
	return &Extractor{src: src}
}

// MarkerOffset returns the page-0 offset of the SDI version marker: the
// FSP header followed by the extent descriptor array, whose entry count
// depends on the page size.
func MarkerOffset(pageSize uint32) int {
	extentPages := uint32(64)
	if pageSize <= 16384 {
		extentPages = (1 << 20) / pageSize
	}
	entries := pageSize / extentPages
	return types.FilHeaderSize + 112 + 40*int(entries)
}

// FindPages returns the page numbers holding SDI leaf records. The fast
// path reads the SDI marker on page 0 and walks the leaf chain from the
// root; when the marker is absent or inconsistent it falls back to a
// linear scan for pages of type SDI.
func (e *Extractor) FindPages() ([]uint64, error) {
	if pages, err := e.findViaRoot(); err == nil && len(pages) > 0 {
		return pages, nil
	}
	return e.scanForPages()
}

// findViaRoot probes the two documented marker locations and follows the
// better one. The marker location moved between MySQL minor versions, so
// the probe preferring a valid root number settles it.
func (e *Extractor) findViaRoot() ([]uint64, error) {
	page0, err := e.src.ReadPage(0)
	if err != nil {
		return nil, err
	}
	r := reader.New(page0)
	base := MarkerOffset(e.src.PageSize())

	root := uint64(0)
	for _, probe := range []int{base, base + 4} {
		ver, err1 := r.Uint32(probe)
		rootNo, err2 := r.Uint32(probe + 4)
		if err1 != nil || err2 != nil {
			continue
		}
		if ver == expectedSdiVersion && uint64(rootNo) >= 1 && uint64(rootNo) < e.src.PageCount() {
			root = uint64(rootNo)
			break
		}
	}
	if root == 0 {
		return nil, errors.Wrap(types.ErrSdiCorrupt, "no valid sdi root marker on page 0")
	}
	leaf, err := e.descendToLeaf(root)
	if err != nil {
		return nil, err
	}
	return e.collectLeafChain(leaf)
}

// descendToLeaf walks internal SDI index pages down their leftmost child
// until it reaches level 0.
func (e *Extractor) descendToLeaf(pageNo uint64) (uint64, error) {
	for hops := uint64(0); hops <= e.src.PageCount(); hops++ {
		buf, err := e.src.ReadPage(pageNo)
		if err != nil {
			return 0, err
		}
		r := reader.New(buf)
		ptype, _ := r.Uint16(types.FilPageType)
		if types.PageType(ptype) != types.PageTypeSdi {
			return 0, errors.Wrapf(types.ErrSdiCorrupt,
				"page %d has type %d, expected SDI", pageNo, ptype)
		}
		level, err := r.Uint16(types.FilHeaderSize + pageLevel)
		if err != nil {
			return 0, err
		}
		if level == 0 {
			return pageNo, nil
		}
		first, err := firstUserRecord(buf)
		if err != nil {
			return 0, err
		}
		child, err := r.Uint32(first + nodePtrChildOffset)
		if err != nil {
			return 0, err
		}
		if uint64(child) >= e.src.PageCount() {
			return 0, errors.Wrapf(types.ErrSdiCorrupt,
				"node pointer on page %d references page %d past the end", pageNo, child)
		}
		pageNo = uint64(child)
	}
	return 0, errors.Wrap(types.ErrSdiCorrupt, "sdi tree deeper than the page count")
}

// collectLeafChain follows next-page links from the leftmost leaf. The
// walk is bounded by the page count to break cycles.
func (e *Extractor) collectLeafChain(leaf uint64) ([]uint64, error) {
	var pages []uint64
	cur := leaf
	for steps := uint64(0); ; steps++ {
		if steps > e.src.PageCount() {
			return nil, errors.Wrap(types.ErrSdiCorrupt, "cycle in sdi leaf chain")
		}
		buf, err := e.src.ReadPage(cur)
		if err != nil {
			return nil, err
		}
		r := reader.New(buf)
		ptype, err := r.Uint16(types.FilPageType)
		if err != nil {
			return nil, err
		}
		if types.PageType(ptype) != types.PageTypeSdi {
			// overflow pages continue a record payload, not the leaf chain
			return pages, nil
		}
		pages = append(pages, cur)
		next, err := r.Uint32(types.FilPageNext)
		if err != nil {
			return nil, err
		}
		if next == types.FilNull || uint64(next) >= e.src.PageCount() {
			return pages, nil
		}
		cur = uint64(next)
	}
}

// scanForPages is the fallback: every page whose FIL type is SDI.
func (e *Extractor) scanForPages() ([]uint64, error) {
	var pages []uint64
	for n := uint64(0); n < e.src.PageCount(); n++ {
		buf, err := e.src.ReadPage(n)
		if err != nil {
			return nil, err
		}
		ptype, err := reader.New(buf).Uint16(types.FilPageType)
		if err != nil {
			continue
		}
		if types.PageType(ptype) == types.PageTypeSdi {
			pages = append(pages, n)
		}
	}
	return pages, nil
}

// Extract locates all SDI pages and decodes every record, reassembling
// payloads that continue onto overflow pages.
func (e *Extractor) Extract() (*Result, error) {
	pages, err := e.FindPages()
	if err != nil {
		return nil, err
	}
	res := &Result{}
	for _, n := range pages {
		buf, err := e.src.ReadPage(n)
		if err != nil {
			return nil, err
		}
		e.extractPage(buf, n, true, res)
	}
	return res, nil
}

// ExtractFromPage decodes the records of one isolated SDI page buffer.
// Payloads that would continue on other pages come back truncated with
// Truncated set; callers tolerate partial data.
func ExtractFromPage(pageBuf []byte) ([]types.SdiRecord, error) {
	ptype, err := reader.New(pageBuf).Uint16(types.FilPageType)
	if err != nil {
		return nil, err
	}
	if types.PageType(ptype) != types.PageTypeSdi {
		return nil, errors.Wrapf(types.ErrSdiCorrupt,
			"page type %d is not SDI", ptype)
	}
	res := &Result{}
	(&Extractor{}).extractPage(pageBuf, 0, false, res)
	return res.Records, nil
}

// extractPage walks the record chain of one leaf page. followChain
// enables cross-page payload reassembly through the extractor's source.
func (e *Extractor) extractPage(pageBuf []byte, pageNo uint64, followChain bool, res *Result) {
	first, err := firstUserRecord(pageBuf)
	if err != nil {
		res.Errors = append(res.Errors, errors.Wrapf(err, "page %d", pageNo))
		return
	}
	origin := first
	for step := 0; step < len(pageBuf); step++ {
		if origin == supremumOffset {
			return
		}
		rtype, err := recordType(pageBuf, origin)
		if err != nil {
			res.Errors = append(res.Errors, errors.Wrapf(err, "page %d record at %d", pageNo, origin))
			return
		}
		if rtype == recTypeSupremum {
			return
		}
		if rtype == recTypeOrdinary {
			rec, err := e.decodeRecord(pageBuf, origin, followChain)
			if err != nil {
				res.Errors = append(res.Errors, errors.Wrapf(err, "page %d record at %d", pageNo, origin))
			} else {
				res.Records = append(res.Records, *rec)
			}
		}
		next, err := nextRecord(pageBuf, origin)
		if err != nil {
			res.Errors = append(res.Errors, errors.Wrapf(err, "page %d record at %d", pageNo, origin))
			return
		}
		if next == origin {
			res.Errors = append(res.Errors, errors.Wrapf(types.ErrSdiCorrupt,
				"page %d record chain loops at %d", pageNo, origin))
			return
		}
		origin = next
	}
	res.Errors = append(res.Errors, errors.Wrapf(types.ErrSdiCorrupt,
		"page %d record chain never reached supremum", pageNo))
}

// decodeRecord reads the SDI header fields at origin and inflates the
// payload, pulling overflow pages when allowed and needed.
func (e *Extractor) decodeRecord(pageBuf []byte, origin int, followChain bool) (*types.SdiRecord, error) {
	r := reader.New(pageBuf)
	sdiType, err := r.Uint32(origin + sdiFieldType)
	if err != nil {
		return nil, err
	}
	sdiID, err := r.Uint64(origin + sdiFieldID)
	if err != nil {
		return nil, err
	}
	uncompLen, err := r.Uint32(origin + sdiFieldUncompLen)
	if err != nil {
		return nil, err
	}
	compLen, err := r.Uint32(origin + sdiFieldCompLen)
	if err != nil {
		return nil, err
	}

	rec := &types.SdiRecord{
		Type:            types.SdiType(sdiType),
		ID:              sdiID,
		UncompressedLen: uncompLen,
		CompressedLen:   compLen,
	}

	payload, truncated, err := e.collectPayload(pageBuf, origin+sdiFieldData, compLen, followChain)
	if err != nil {
		return nil, err
	}
	if truncated {
		rec.Truncated = true
		rec.Data = payload
		return rec, nil
	}

	data, err := inflate(payload)
	if err != nil {
		return nil, errors.Wrapf(types.ErrSdiCorrupt, "inflating sdi %d: %v", sdiID, err)
	}
	if uint32(len(data)) != uncompLen {
		return nil, errors.Wrapf(types.ErrSdiCorrupt,
			"sdi %d inflated to %d bytes, header says %d", sdiID, len(data), uncompLen)
	}
	rec.Data = data
	return rec, nil
}

// collectPayload gathers compLen payload bytes starting inside the
// current page, continuing across the overflow chain when the record
// spills past the page body.
func (e *Extractor) collectPayload(pageBuf []byte, start int, compLen uint32, followChain bool) ([]byte, bool, error) {
	pageSize := len(pageBuf)
	bodyEnd := pageSize - types.FilTrailerSize
	if start > bodyEnd {
		return nil, false, errors.Wrap(types.ErrSdiCorrupt, "payload starts inside the trailer")
	}

	avail := bodyEnd - start
	if uint32(avail) >= compLen {
		return append([]byte(nil), pageBuf[start:start+int(compLen)]...), false, nil
	}

	payload := append([]byte(nil), pageBuf[start:bodyEnd]...)
	if !followChain || e.src == nil {
		return payload, true, nil
	}

	next, err := reader.New(pageBuf).Uint32(types.FilPageNext)
	if err != nil {
		return nil, false, err
	}
	for steps := uint64(0); uint32(len(payload)) < compLen; steps++ {
		if steps > e.src.PageCount() {
			return nil, false, errors.Wrap(types.ErrSdiCorrupt, "cycle in sdi overflow chain")
		}
		if next == types.FilNull || uint64(next) >= e.src.PageCount() {
			return nil, false, errors.Wrapf(types.ErrSdiCorrupt,
				"payload short by %d bytes with no further overflow page",
				compLen-uint32(len(payload)))
		}
		buf, err := e.src.ReadPage(uint64(next))
		if err != nil {
			return nil, false, err
		}
		r := reader.New(buf)
		ptype, _ := r.Uint16(types.FilPageType)
		pt := types.PageType(ptype)
		if pt != types.PageTypeSdiBlobChain && pt != types.PageTypeSdiBlob && pt != types.PageTypeSdi {
			return nil, false, errors.Wrapf(types.ErrSdiCorrupt,
				"overflow page %d has type %d", next, ptype)
		}
		chunk := buf[types.FilHeaderSize : len(buf)-types.FilTrailerSize]
		missing := compLen - uint32(len(payload))
		if uint32(len(chunk)) > missing {
			chunk = chunk[:missing]
		}
		payload = append(payload, chunk...)
		next, err = r.Uint32(types.FilPageNext)
		if err != nil {
			return nil, false, err
		}
	}
	return payload, false, nil
}

// firstUserRecord resolves the infimum's next pointer.
func firstUserRecord(pageBuf []byte) (int, error) {
	return nextRecord(pageBuf, infimumOffset)
}

// nextRecord follows the compact-format relative next pointer stored two
// bytes before the record origin.
func nextRecord(pageBuf []byte, origin int) (int, error) {
	rel, err := reader.New(pageBuf).Uint16(origin - recNextOffset)
	if err != nil {
		return 0, err
	}
	next := origin + int(int16(rel))
	if next < types.FilHeaderSize || next >= len(pageBuf)-types.FilTrailerSize {
		return 0, errors.Wrapf(types.ErrSdiCorrupt,
			"next record pointer %d out of the page body", next)
	}
	return next, nil
}

// recordType extracts the low three bits of the info byte.
func recordType(pageBuf []byte, origin int) (int, error) {
	b, err := reader.New(pageBuf).Uint8(origin - recTypeOffset)
	if err != nil {
		return 0, err
	}
	return int(b & 0x07), nil
}

// inflate decompresses a zlib stream fully into memory.
func inflate(compressed []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
