package reader

//go:generate mockgen -source=interfaces.go -destination=mocks/reader_mock.go

// ByteReader defines offset-addressed big-endian reads over a byte buffer.
// Every accessor fails with types.ErrTruncatedInput when the requested
// range exceeds the buffer; none of them panic.
type ByteReader interface {
	// Uint8 reads one byte at offset
	Uint8(offset int) (uint8, error)

	// Uint16 reads a big-endian 16-bit unsigned integer at offset
	Uint16(offset int) (uint16, error)

	// Uint32 reads a big-endian 32-bit unsigned integer at offset
	Uint32(offset int) (uint32, error)

	// Uint64 reads a big-endian 64-bit unsigned integer at offset
	Uint64(offset int) (uint64, error)

	// Slice returns the n bytes starting at offset, aliasing the
	// underlying buffer
	Slice(offset, n int) ([]byte, error)

	// Len returns the buffer length
	Len() int
}
