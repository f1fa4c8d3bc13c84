// Package redolog reads InnoDB redo log files as a sequence of 512-byte
// blocks: the file header, the two checkpoint blocks, and the data
// blocks with their CRC-32C trailers. Record groups are identified by
// type only; their bodies are not decoded.
package redolog

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/yamaru/innodb-ibd-tool/internal/checksum"
	"github.com/yamaru/innodb-ibd-tool/internal/types"
)

// LogFile is an open redo log. Blocks are read at offsets; nothing past
// EOF is ever requested.
type LogFile struct {
	src       io.ReaderAt
	closer    io.Closer
	path      string
	size      int64
	newFormat bool

	header      *types.LogFileHeader
	checkpoints [2]*types.LogCheckpoint
}

// Open opens a redo log file. Files named #ib_redo* are the post-8.0.30
// dynamic-capacity format; the block layout is identical, only file
// rotation differs, which this codec never sees.
func Open(path string) (*LogFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening redo log %s", path)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	lf := &LogFile{
		src:       f,
		closer:    f,
		path:      path,
		size:      st.Size(),
		newFormat: IsNewFormatName(path),
	}
	if err := lf.init(); err != nil {
		f.Close()
		return nil, err
	}
	return lf, nil
}

// FromBytes opens an in-memory redo log image.
func FromBytes(buf []byte) (*LogFile, error) {
	lf := &LogFile{src: bytes.NewReader(buf), size: int64(len(buf))}
	if err := lf.init(); err != nil {
		return nil, err
	}
	return lf, nil
}

// IsNewFormatName reports whether the file name marks the post-8.0.30
// redo format.
func IsNewFormatName(path string) bool {
	return strings.HasPrefix(filepath.Base(path), "#ib_redo")
}

func (lf *LogFile) init() error {
	if lf.size < int64(types.LogFirstDataBlock*types.LogBlockSize) {
		return errors.Wrapf(types.ErrTooSmall,
			"%d bytes cannot hold the redo file header area", lf.size)
	}
	hdrBlock, err := lf.rawBlock(types.LogFileHeaderBlock)
	if err != nil {
		return err
	}
	lf.header = parseFileHeader(hdrBlock)

	for i, blockNo := range []uint64{types.LogCheckpoint1Block, types.LogCheckpoint2Block} {
		raw, err := lf.rawBlock(blockNo)
		if err != nil {
			return err
		}
		lf.checkpoints[i] = parseCheckpoint(raw)
	}
	return nil
}

func (lf *LogFile) rawBlock(n uint64) ([]byte, error) {
	offset := int64(n) * types.LogBlockSize
	if offset+types.LogBlockSize > lf.size {
		return nil, errors.Wrapf(types.ErrPageOutOfRange, "block %d", n)
	}
	buf := make([]byte, types.LogBlockSize)
	if _, err := lf.src.ReadAt(buf, offset); err != nil {
		return nil, errors.Wrapf(err, "reading block %d", n)
	}
	return buf, nil
}

func parseFileHeader(raw []byte) *types.LogFileHeader {
	creator := raw[16:48]
	return &types.LogFileHeader{
		GroupID:  binary.BigEndian.Uint32(raw[0:]),
		FileNo:   binary.BigEndian.Uint32(raw[4:]),
		StartLSN: binary.BigEndian.Uint64(raw[8:]),
		Creator:  string(bytes.TrimRight(creator, "\x00")),
	}
}

func parseCheckpoint(raw []byte) *types.LogCheckpoint {
	return &types.LogCheckpoint{
		CheckpointNo:  binary.BigEndian.Uint64(raw[0:]),
		CheckpointLSN: binary.BigEndian.Uint64(raw[8:]),
		Offset:        binary.BigEndian.Uint64(raw[16:]),
		BufSize:       binary.BigEndian.Uint64(raw[24:]),
	}
}

// ParseBlock parses one raw 512-byte data block, validating its CRC-32C.
// An invalid CRC is recorded on the result, not returned as an error, so
// scans can keep going and report.
func ParseBlock(raw []byte) (*types.LogBlock, error) {
	if len(raw) < types.LogBlockSize {
		return nil, errors.Wrapf(types.ErrTruncatedInput,
			"redo block needs %d bytes, have %d", types.LogBlockSize, len(raw))
	}
	no := binary.BigEndian.Uint32(raw[types.LogBlockNumber:])
	stored := binary.BigEndian.Uint32(raw[types.LogBlockChecksumOffset:])
	calc := checksum.Crc32c(raw[:types.LogBlockChecksumOffset])
	return &types.LogBlock{
		BlockNumber:   no &^ types.LogBlockFlushFlag,
		FlushFlag:     no&types.LogBlockFlushFlag != 0,
		DataLen:       binary.BigEndian.Uint16(raw[types.LogBlockDataLen:]),
		FirstRecGroup: binary.BigEndian.Uint16(raw[types.LogBlockFirstRec:]),
		CheckpointNo:  binary.BigEndian.Uint32(raw[types.LogBlockCheckpoint:]),
		Data:          append([]byte(nil), raw[types.LogBlockHdrSize:types.LogBlockChecksumOffset]...),
		StoredCrc:     stored,
		CalculatedCrc: calc,
		CrcValid:      stored == calc,
	}, nil
}

// FileHeader returns the parsed block 0.
func (lf *LogFile) FileHeader() *types.LogFileHeader { return lf.header }

// Checkpoints returns both checkpoint blocks in file order.
func (lf *LogFile) Checkpoints() (*types.LogCheckpoint, *types.LogCheckpoint) {
	return lf.checkpoints[0], lf.checkpoints[1]
}

// LatestCheckpoint returns the checkpoint with the higher sequence
// number.
func (lf *LogFile) LatestCheckpoint() *types.LogCheckpoint {
	cp1, cp2 := lf.checkpoints[0], lf.checkpoints[1]
	if cp2.CheckpointNo > cp1.CheckpointNo {
		return cp2
	}
	return cp1
}

// IsNewFormat reports whether the file name marked this as a post-8.0.30
// redo file.
func (lf *LogFile) IsNewFormat() bool { return lf.newFormat }

// Size returns the file size in bytes.
func (lf *LogFile) Size() int64 { return lf.size }

// BlockCount returns the number of whole 512-byte blocks in the file.
func (lf *LogFile) BlockCount() uint64 {
	return uint64(lf.size) / types.LogBlockSize
}

// ReadBlock parses data block n (n >= 4; the header area is reachable
// through FileHeader and Checkpoints).
func (lf *LogFile) ReadBlock(n uint64) (*types.LogBlock, error) {
	raw, err := lf.rawBlock(n)
	if err != nil {
		return nil, err
	}
	return ParseBlock(raw)
}

// ForEachDataBlock iterates the data blocks from block 4 to EOF. The
// first error returned by cb stops iteration and is surfaced unchanged;
// CRC mismatches do not stop iteration by themselves.
func (lf *LogFile) ForEachDataBlock(cb func(n uint64, block *types.LogBlock) error) error {
	for n := uint64(types.LogFirstDataBlock); n < lf.BlockCount(); n++ {
		block, err := lf.ReadBlock(n)
		if err != nil {
			return err
		}
		if err := cb(n, block); err != nil {
			return err
		}
	}
	return nil
}

// FirstRecordType identifies the record group type a block points at via
// its first_rec_group offset. Returns false when the block carries no
// record group boundary.
func FirstRecordType(block *types.LogBlock) (types.RecordType, bool) {
	if block.FirstRecGroup < types.LogBlockHdrSize {
		return 0, false
	}
	idx := int(block.FirstRecGroup) - types.LogBlockHdrSize
	if idx >= len(block.Data) {
		return 0, false
	}
	t := types.RecordType(block.Data[idx])
	if !t.IsValid() {
		return 0, false
	}
	return t, true
}

// Close releases the backing file, if any.
func (lf *LogFile) Close() error {
	if lf.closer != nil {
		return lf.closer.Close()
	}
	return nil
}
