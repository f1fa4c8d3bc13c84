// Package checksum validates InnoDB page checksums under the three
// algorithms found in the wild: the MySQL split CRC-32C, the legacy
// ut_fold based InnoDB checksum, and the MariaDB 10.5+ full_crc32 format.
package checksum

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/yamaru/innodb-ibd-tool/internal/types"
)

// Algorithm names the checksum scheme a validation result was produced
// under.
type Algorithm int

const (
	// AlgorithmNone covers all-zero pages and the 0xDEADBEEF magic.
	AlgorithmNone Algorithm = iota
	AlgorithmCrc32c
	AlgorithmInnoDB
	AlgorithmMariaDBFullCrc32
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmCrc32c:
		return "crc32c"
	case AlgorithmInnoDB:
		return "innodb"
	case AlgorithmMariaDBFullCrc32:
		return "full_crc32"
	default:
		return "none"
	}
}

// Result is the outcome of validating one page. A mismatch is a result,
// not an error, so callers can report and continue scanning.
type Result struct {
	Algorithm  Algorithm
	Valid      bool
	Stored     uint32
	Calculated uint32
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Crc32c computes the CRC-32C (Castagnoli) of data, matching MySQL's
// ut_crc32: empty input hashes to 0, "123456789" to 0xE3069283.
func Crc32c(data []byte) uint32 {
	return crc32.Checksum(data, castagnoli)
}

// Hashing constants from MySQL ut0rnd.h. The legacy checksum is defined
// by this exact arithmetic; there is no independent specification.
const (
	utHashRandomMask  = 1463735687
	utHashRandomMask2 = 1653893711
)

// utFoldUlintPair is ut_fold_ulint_pair from MySQL, truncated to 32 bits.
// The truncation is sound: no step feeds bits above 31 back down.
func utFoldUlintPair(n1, n2 uint32) uint32 {
	return ((((n1^n2^utHashRandomMask2)<<8)+n1)^utHashRandomMask) + n2
}

// utFoldBinary is ut_fold_binary: fold each byte into a running value.
func utFoldBinary(data []byte) uint32 {
	var fold uint32
	for _, b := range data {
		fold = utFoldUlintPair(fold, uint32(b))
	}
	return fold
}

// splitRanges returns the two byte ranges both MySQL checksum algorithms
// cover: the header after the checksum field up to FIL_PAGE_FILE_FLUSH_LSN,
// and the body up to the trailer.
func splitRanges(page []byte, pageSize uint32) (hdr, body []byte) {
	return page[types.FilPageOffset:types.FilPageFlushLSN],
		page[types.FilHeaderSize : pageSize-types.FilTrailerSize]
}

// Validate checks the checksum of one full page under the vendor's
// dispatch rules.
func Validate(pageBuf []byte, pageSize uint32, vendor types.Vendor) Result {
	if uint32(len(pageBuf)) < pageSize || pageSize < types.FilHeaderSize+types.FilTrailerSize {
		return Result{Algorithm: AlgorithmNone, Valid: false}
	}
	if allZero(pageBuf[:pageSize]) {
		return Result{Algorithm: AlgorithmNone, Valid: true}
	}

	stored := binary.BigEndian.Uint32(pageBuf[types.FilPageChecksum:])
	if stored == types.NoChecksumMagic {
		return Result{Algorithm: AlgorithmNone, Valid: true, Stored: stored}
	}

	// full_crc32 tablespaces never fall back to another algorithm.
	if vendor.IsFullCrc32() {
		calc := Crc32c(pageBuf[:pageSize-4])
		tail := binary.LittleEndian.Uint32(pageBuf[pageSize-4:])
		return Result{
			Algorithm:  AlgorithmMariaDBFullCrc32,
			Valid:      calc == tail,
			Stored:     tail,
			Calculated: calc,
		}
	}

	hdr, body := splitRanges(pageBuf, pageSize)

	crcCalc := Crc32c(hdr) ^ Crc32c(body)
	if stored == crcCalc {
		return Result{Algorithm: AlgorithmCrc32c, Valid: true, Stored: stored, Calculated: crcCalc}
	}

	foldCalc := utFoldBinary(hdr) + utFoldBinary(body)
	if stored == foldCalc {
		return Result{Algorithm: AlgorithmInnoDB, Valid: true, Stored: stored, Calculated: foldCalc}
	}

	return Result{Algorithm: AlgorithmCrc32c, Valid: false, Stored: stored, Calculated: crcCalc}
}

// ValidateLSN checks the torn-page invariant: the low 32 bits of the
// header LSN must match the trailer copy.
func ValidateLSN(pageBuf []byte, pageSize uint32) bool {
	if uint32(len(pageBuf)) < pageSize || pageSize < types.FilHeaderSize+types.FilTrailerSize {
		return false
	}
	hdrLow := binary.BigEndian.Uint32(pageBuf[types.FilPageLSN+4:])
	trlLow := binary.BigEndian.Uint32(pageBuf[pageSize-4:])
	return hdrLow == trlLow
}

func allZero(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}
