package reader

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"

	"github.com/yamaru/innodb-ibd-tool/internal/types"
)

// byteReader implements ByteReader over an in-memory buffer.
type byteReader struct {
	buf []byte
}

// New creates a ByteReader over buf. The buffer is aliased, not copied.
func New(buf []byte) ByteReader {
	return &byteReader{buf: buf}
}

func (r *byteReader) check(offset, n int) error {
	if offset < 0 || n < 0 || offset+n > len(r.buf) {
		return errors.Wrapf(types.ErrTruncatedInput,
			"need %d bytes at offset %d, buffer holds %d", n, offset, len(r.buf))
	}
	return nil
}

// Uint8 reads one byte at offset.
func (r *byteReader) Uint8(offset int) (uint8, error) {
	if err := r.check(offset, 1); err != nil {
		return 0, err
	}
	return r.buf[offset], nil
}

// Uint16 reads a big-endian 16-bit unsigned integer at offset.
func (r *byteReader) Uint16(offset int) (uint16, error) {
	if err := r.check(offset, 2); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(r.buf[offset:]), nil
}

// Uint32 reads a big-endian 32-bit unsigned integer at offset.
func (r *byteReader) Uint32(offset int) (uint32, error) {
	if err := r.check(offset, 4); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(r.buf[offset:]), nil
}

// Uint64 reads a big-endian 64-bit unsigned integer at offset.
func (r *byteReader) Uint64(offset int) (uint64, error) {
	if err := r.check(offset, 8); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(r.buf[offset:]), nil
}

// Slice returns the n bytes starting at offset. The result aliases the
// underlying buffer.
func (r *byteReader) Slice(offset, n int) ([]byte, error) {
	if err := r.check(offset, n); err != nil {
		return nil, err
	}
	return r.buf[offset : offset+n], nil
}

// Len returns the buffer length.
func (r *byteReader) Len() int {
	return len(r.buf)
}
