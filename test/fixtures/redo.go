package fixtures

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/yamaru/innodb-ibd-tool/internal/types"
)

// StampBlockCrc computes and stores the CRC-32C trailer of a 512-byte
// redo block.
func StampBlockCrc(block []byte) {
	crc := crc32.Checksum(block[:types.LogBlockChecksumOffset], castagnoli)
	binary.BigEndian.PutUint32(block[types.LogBlockChecksumOffset:], crc)
}

// BuildRedoFileHeader builds block 0 of a redo log file.
func BuildRedoFileHeader(groupID, fileNo uint32, startLSN uint64, creator string) []byte {
	block := make([]byte, types.LogBlockSize)
	binary.BigEndian.PutUint32(block[0:], groupID)
	binary.BigEndian.PutUint32(block[4:], fileNo)
	binary.BigEndian.PutUint64(block[8:], startLSN)
	copy(block[16:48], creator)
	StampBlockCrc(block)
	return block
}

// BuildCheckpointBlock builds one of the two checkpoint blocks.
func BuildCheckpointBlock(no, lsn, offset, bufSize uint64) []byte {
	block := make([]byte, types.LogBlockSize)
	binary.BigEndian.PutUint64(block[0:], no)
	binary.BigEndian.PutUint64(block[8:], lsn)
	binary.BigEndian.PutUint64(block[16:], offset)
	binary.BigEndian.PutUint64(block[24:], bufSize)
	StampBlockCrc(block)
	return block
}

// BuildDataBlock builds a redo data block with the payload placed after
// the 14-byte header and a valid CRC trailer.
func BuildDataBlock(blockNo uint32, flush bool, firstRecGroup uint16, checkpointNo uint32, payload []byte) []byte {
	block := make([]byte, types.LogBlockSize)
	no := blockNo
	if flush {
		no |= types.LogBlockFlushFlag
	}
	binary.BigEndian.PutUint32(block[types.LogBlockNumber:], no)
	dataLen := types.LogBlockHdrSize + len(payload)
	binary.BigEndian.PutUint16(block[types.LogBlockDataLen:], uint16(dataLen))
	binary.BigEndian.PutUint16(block[types.LogBlockFirstRec:], firstRecGroup)
	binary.BigEndian.PutUint32(block[types.LogBlockCheckpoint:], checkpointNo)
	copy(block[types.LogBlockHdrSize:types.LogBlockChecksumOffset], payload)
	StampBlockCrc(block)
	return block
}

// BuildRedoLog assembles a whole redo file: header, both checkpoints,
// the reserved block, then the given data blocks.
func BuildRedoLog(startLSN uint64, creator string, cp1, cp2 uint64, dataBlocks ...[]byte) []byte {
	out := BuildRedoFileHeader(1, 1, startLSN, creator)
	out = append(out, BuildCheckpointBlock(cp1, startLSN, 2048, 1<<20)...)
	reserved := make([]byte, types.LogBlockSize)
	StampBlockCrc(reserved)
	out = append(out, reserved...)
	out = append(out, BuildCheckpointBlock(cp2, startLSN, 2048, 1<<20)...)
	for _, b := range dataBlocks {
		out = append(out, b...)
	}
	return out
}
