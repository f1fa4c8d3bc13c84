package types

import "fmt"

// Redo log block geometry, from MySQL log0log.h / log0constants.h.
const (
	LogBlockSize     = 512 // OS_FILE_LOG_BLOCK_SIZE
	LogBlockHdrSize  = 14  // block_number + data_len + first_rec + checkpoint_no + pad
	LogBlockTrlSize  = 4   // trailing CRC-32C
	LogBlockDataSize = LogBlockSize - LogBlockHdrSize - LogBlockTrlSize

	// Block header field offsets
	LogBlockNumber     = 0  // 4 bytes, bit 31 is the flush flag
	LogBlockDataLen    = 4  // 2 bytes
	LogBlockFirstRec   = 6  // 2 bytes, offset of the first record group
	LogBlockCheckpoint = 8  // 4 bytes
	LogBlockPad        = 12 // 2 bytes

	// LogBlockChecksumOffset is where the block CRC-32C lives.
	LogBlockChecksumOffset = LogBlockSize - LogBlockTrlSize

	// LogBlockFlushFlag marks the first block of a flush write.
	LogBlockFlushFlag = 1 << 31

	// File layout: block 0 is the file header, blocks 1 and 3 hold
	// checkpoints, block 2 is reserved, data starts at block 4.
	LogFileHeaderBlock  = 0
	LogCheckpoint1Block = 1
	LogCheckpoint2Block = 3
	LogFirstDataBlock   = 4
)

// LogFileHeader is the parsed block 0 of a redo log file.
type LogFileHeader struct {
	GroupID  uint32
	FileNo   uint32
	StartLSN uint64
	Creator  string // 32-byte creator string, NUL padding stripped
}

// LogCheckpoint is one of the two checkpoint blocks. Callers pick the one
// with the higher CheckpointNo.
type LogCheckpoint struct {
	CheckpointNo  uint64
	CheckpointLSN uint64
	Offset        uint64
	BufSize       uint64
}

// LogBlock is a parsed 512-byte data block.
type LogBlock struct {
	BlockNumber   uint32 // with the flush flag masked out
	FlushFlag     bool
	DataLen       uint16
	FirstRecGroup uint16
	CheckpointNo  uint32
	Data          []byte // the payload region between header and CRC
	StoredCrc     uint32
	CalculatedCrc uint32
	CrcValid      bool
}

// RecordType is the leading byte of a redo log record group (mlog_id_t).
type RecordType uint8

// Known mlog_id_t values from mtr0types.h. Identification only; semantic
// decoding of record bodies is not done here.
const (
	MLogRec1Byte             RecordType = 1
	MLogRec2Bytes            RecordType = 2
	MLogRec4Bytes            RecordType = 4
	MLogRec8Bytes            RecordType = 8
	MLogRecInsert            RecordType = 9
	MLogRecClustDeleteMark   RecordType = 10
	MLogRecSecDeleteMark     RecordType = 11
	MLogRecUpdateInPlace     RecordType = 13
	MLogRecDelete            RecordType = 14
	MLogListEndDelete        RecordType = 15
	MLogListStartDelete      RecordType = 16
	MLogListEndCopyCreated   RecordType = 17
	MLogPageReorganize       RecordType = 18
	MLogPageCreate           RecordType = 19
	MLogUndoInsert           RecordType = 20
	MLogUndoEraseEnd         RecordType = 21
	MLogUndoInit             RecordType = 22
	MLogUndoHdrReuse         RecordType = 24
	MLogUndoHdrCreate        RecordType = 25
	MLogRecMinMark           RecordType = 26
	MLogIbufBitmapInit       RecordType = 27
	MLogInitFilePage         RecordType = 29
	MLogWriteString          RecordType = 30
	MLogMultiRecEnd          RecordType = 31
	MLogDummyRecord          RecordType = 32
	MLogFileCreate           RecordType = 33
	MLogFileRename           RecordType = 34
	MLogFileDelete           RecordType = 35
	MLogCompRecMinMark       RecordType = 36
	MLogCompPageCreate       RecordType = 37
	MLogCompRecInsert        RecordType = 38
	MLogCompRecClustDelMark  RecordType = 39
	MLogCompRecSecDelMark    RecordType = 40
	MLogCompRecUpdateInPlace RecordType = 41
	MLogCompRecDelete        RecordType = 42
	MLogCompListEndDelete    RecordType = 43
	MLogCompListStartDelete  RecordType = 44
	MLogCompListEndCopy      RecordType = 45
	MLogCompPageReorganize   RecordType = 46
	MLogFileCreate2          RecordType = 47
	MLogZipWriteNodePtr      RecordType = 48
	MLogZipWriteBlobPtr      RecordType = 49
	MLogZipWriteHeader       RecordType = 50
	MLogZipPageCompress      RecordType = 51
	MLogZipPageCompressNoDat RecordType = 52
	MLogZipPageReorganize    RecordType = 53
	MLogFileRename2          RecordType = 55
	MLogFileName             RecordType = 56
	MLogCheckpoint           RecordType = 57
	MLogPageCreateRtree      RecordType = 58
	MLogCompPageCreateRtree  RecordType = 59
	MLogInitFilePage2        RecordType = 60
	MLogIndexLoad            RecordType = 61
	MLogTableDynamicMeta     RecordType = 62
	MLogPageCreateSdi        RecordType = 63
	MLogCompPageCreateSdi    RecordType = 64

	// MLogSingleRecFlag is OR-ed into the type byte of a single-record
	// mini-transaction.
	MLogSingleRecFlag = 0x80

	// MLogMaxRecordType bounds the valid type range.
	MLogMaxRecordType = 76
)

var mlogNames = map[RecordType]string{
	MLogRec1Byte:             "MLOG_1BYTE",
	MLogRec2Bytes:            "MLOG_2BYTES",
	MLogRec4Bytes:            "MLOG_4BYTES",
	MLogRec8Bytes:            "MLOG_8BYTES",
	MLogRecInsert:            "MLOG_REC_INSERT",
	MLogRecClustDeleteMark:   "MLOG_REC_CLUST_DELETE_MARK",
	MLogRecSecDeleteMark:     "MLOG_REC_SEC_DELETE_MARK",
	MLogRecUpdateInPlace:     "MLOG_REC_UPDATE_IN_PLACE",
	MLogRecDelete:            "MLOG_REC_DELETE",
	MLogListEndDelete:        "MLOG_LIST_END_DELETE",
	MLogListStartDelete:      "MLOG_LIST_START_DELETE",
	MLogListEndCopyCreated:   "MLOG_LIST_END_COPY_CREATED",
	MLogPageReorganize:       "MLOG_PAGE_REORGANIZE",
	MLogPageCreate:           "MLOG_PAGE_CREATE",
	MLogUndoInsert:           "MLOG_UNDO_INSERT",
	MLogUndoEraseEnd:         "MLOG_UNDO_ERASE_END",
	MLogUndoInit:             "MLOG_UNDO_INIT",
	MLogUndoHdrReuse:         "MLOG_UNDO_HDR_REUSE",
	MLogUndoHdrCreate:        "MLOG_UNDO_HDR_CREATE",
	MLogRecMinMark:           "MLOG_REC_MIN_MARK",
	MLogIbufBitmapInit:       "MLOG_IBUF_BITMAP_INIT",
	MLogInitFilePage:         "MLOG_INIT_FILE_PAGE",
	MLogWriteString:          "MLOG_WRITE_STRING",
	MLogMultiRecEnd:          "MLOG_MULTI_REC_END",
	MLogDummyRecord:          "MLOG_DUMMY_RECORD",
	MLogFileCreate:           "MLOG_FILE_CREATE",
	MLogFileRename:           "MLOG_FILE_RENAME",
	MLogFileDelete:           "MLOG_FILE_DELETE",
	MLogCompRecMinMark:       "MLOG_COMP_REC_MIN_MARK",
	MLogCompPageCreate:       "MLOG_COMP_PAGE_CREATE",
	MLogCompRecInsert:        "MLOG_COMP_REC_INSERT",
	MLogCompRecClustDelMark:  "MLOG_COMP_REC_CLUST_DELETE_MARK",
	MLogCompRecSecDelMark:    "MLOG_COMP_REC_SEC_DELETE_MARK",
	MLogCompRecUpdateInPlace: "MLOG_COMP_REC_UPDATE_IN_PLACE",
	MLogCompRecDelete:        "MLOG_COMP_REC_DELETE",
	MLogCompListEndDelete:    "MLOG_COMP_LIST_END_DELETE",
	MLogCompListStartDelete:  "MLOG_COMP_LIST_START_DELETE",
	MLogCompListEndCopy:      "MLOG_COMP_LIST_END_COPY_CREATED",
	MLogCompPageReorganize:   "MLOG_COMP_PAGE_REORGANIZE",
	MLogFileCreate2:          "MLOG_FILE_CREATE2",
	MLogZipWriteNodePtr:      "MLOG_ZIP_WRITE_NODE_PTR",
	MLogZipWriteBlobPtr:      "MLOG_ZIP_WRITE_BLOB_PTR",
	MLogZipWriteHeader:       "MLOG_ZIP_WRITE_HEADER",
	MLogZipPageCompress:      "MLOG_ZIP_PAGE_COMPRESS",
	MLogZipPageCompressNoDat: "MLOG_ZIP_PAGE_COMPRESS_NO_DATA",
	MLogZipPageReorganize:    "MLOG_ZIP_PAGE_REORGANIZE",
	MLogFileRename2:          "MLOG_FILE_RENAME2",
	MLogFileName:             "MLOG_FILE_NAME",
	MLogCheckpoint:           "MLOG_CHECKPOINT",
	MLogPageCreateRtree:      "MLOG_PAGE_CREATE_RTREE",
	MLogCompPageCreateRtree:  "MLOG_COMP_PAGE_CREATE_RTREE",
	MLogInitFilePage2:        "MLOG_INIT_FILE_PAGE2",
	MLogIndexLoad:            "MLOG_INDEX_LOAD",
	MLogTableDynamicMeta:     "MLOG_TABLE_DYNAMIC_META",
	MLogPageCreateSdi:        "MLOG_PAGE_CREATE_SDI",
	MLogCompPageCreateSdi:    "MLOG_COMP_PAGE_CREATE_SDI",
}

// Base strips the single-record MTR flag.
func (t RecordType) Base() RecordType { return t &^ MLogSingleRecFlag }

// IsSingleRec reports whether the single-record MTR flag is set.
func (t RecordType) IsSingleRec() bool { return t&MLogSingleRecFlag != 0 }

// IsValid reports whether the base type falls inside the known range.
func (t RecordType) IsValid() bool {
	base := t.Base()
	return base >= 1 && base <= MLogMaxRecordType
}

func (t RecordType) String() string {
	if name, ok := mlogNames[t.Base()]; ok {
		return name
	}
	return fmt.Sprintf("MLOG_%d", uint8(t.Base()))
}
