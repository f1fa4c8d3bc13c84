package analyzer

import (
	"github.com/yamaru/innodb-ibd-tool/internal/checksum"
	"github.com/yamaru/innodb-ibd-tool/internal/types"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/analyzer_mock.go

// TablespaceAnalyzer defines the interface for whole-file tablespace scans.
type TablespaceAnalyzer interface {
	// AnalyzeFile performs a complete scan of a tablespace file
	AnalyzeFile(filename string) (*TablespaceReport, error)
}

// ChecksumIssue is one page that failed validation.
type ChecksumIssue struct {
	PageNumber uint32
	Algorithm  checksum.Algorithm
	Stored     uint32
	Calculated uint32
}

// TablespaceReport is the result of scanning every page of a tablespace.
type TablespaceReport struct {
	Path      string
	FileSize  uint64
	PageSize  uint32
	PageCount uint64
	Vendor    types.Vendor
	SpaceID   uint32
	Encrypted bool

	PageTypeCounts   map[types.PageType]uint64
	ChecksumFailures []ChecksumIssue
	TornPages        []uint64
	SdiPages         []uint64
	SdiRecordCount   int
	SdiErrors        []string
	Warnings         []string
}

// RedoLogReport is the result of scanning a redo log file.
type RedoLogReport struct {
	Path       string
	NewFormat  bool
	BlockCount uint64
	DataBlocks uint64

	Header           *types.LogFileHeader
	Checkpoint1      *types.LogCheckpoint
	Checkpoint2      *types.LogCheckpoint
	LatestCheckpoint *types.LogCheckpoint

	CorruptBlocks    []uint64
	EmptyBlocks      uint64
	RecordTypeCounts map[types.RecordType]uint64
}
