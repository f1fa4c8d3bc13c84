package analyzer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/yamaru/innodb-ibd-tool/internal/redolog"
	"github.com/yamaru/innodb-ibd-tool/internal/tablespace"
	"github.com/yamaru/innodb-ibd-tool/internal/types"
	"github.com/yamaru/innodb-ibd-tool/test/fixtures"
)

const pageSize = 16384

// AnalyzerTestSuite runs whole-file scans over synthetic images.
type AnalyzerTestSuite struct {
	suite.Suite
	tempDir string
}

func (suite *AnalyzerTestSuite) SetupTest() {
	tempDir, err := os.MkdirTemp("", "analyzer_test")
	suite.Require().NoError(err)
	suite.tempDir = tempDir
}

func (suite *AnalyzerTestSuite) TearDownTest() {
	if suite.tempDir != "" {
		os.RemoveAll(suite.tempDir)
	}
}

func (suite *AnalyzerTestSuite) buildImage() []byte {
	img := fixtures.Page0(pageSize, 0, 11)

	good := fixtures.BlankPage(pageSize)
	fixtures.SetFilHeader(good, types.FilHeader{
		PageNumber: 1, PrevPage: types.FilNull, NextPage: types.FilNull,
		LSN: 300, PageType: types.PageTypeIndex, SpaceID: 11,
	})
	fixtures.StampCrc32c(good, pageSize)
	img = append(img, good...)

	bad := fixtures.BlankPage(pageSize)
	fixtures.SetFilHeader(bad, types.FilHeader{
		PageNumber: 2, PrevPage: types.FilNull, NextPage: types.FilNull,
		LSN: 400, PageType: types.PageTypeUndoLog, SpaceID: 11,
	})
	fixtures.StampCrc32c(bad, pageSize)
	bad[6000] ^= 0x01 // corrupt after stamping
	img = append(img, bad...)

	// checksum stays valid but the trailer LSN copy disagrees
	torn := fixtures.BlankPage(pageSize)
	fixtures.SetFilHeader(torn, types.FilHeader{
		PageNumber: 3, PrevPage: types.FilNull, NextPage: types.FilNull,
		LSN: 500, PageType: types.PageTypeIndex, SpaceID: 11,
	})
	fixtures.StampCrc32c(torn, pageSize)
	torn[pageSize-1] ^= 0x01
	img = append(img, torn...)

	zero := fixtures.BlankPage(pageSize)
	return append(img, zero...)
}

func (suite *AnalyzerTestSuite) TestAnalyzeTablespace() {
	ts, err := tablespace.FromBytes(suite.buildImage())
	suite.Require().NoError(err)

	report, err := AnalyzeTablespace(ts)
	suite.Require().NoError(err)

	suite.Assert().Equal(uint32(pageSize), report.PageSize)
	suite.Assert().Equal(uint64(5), report.PageCount)
	suite.Assert().Equal(uint32(11), report.SpaceID)
	suite.Assert().Equal(types.VendorMySQL, report.Vendor.Kind)
	suite.Assert().False(report.Encrypted)

	suite.Assert().Equal(uint64(1), report.PageTypeCounts[types.PageTypeFspHdr])
	suite.Assert().Equal(uint64(2), report.PageTypeCounts[types.PageTypeIndex])
	suite.Assert().Equal(uint64(1), report.PageTypeCounts[types.PageTypeUndoLog])
	suite.Assert().Equal(uint64(1), report.PageTypeCounts[types.PageTypeAllocated])

	suite.Require().Len(report.ChecksumFailures, 2)
	// page 0 was never stamped; page 2 was corrupted after stamping
	suite.Assert().Equal(uint32(0), report.ChecksumFailures[0].PageNumber)
	suite.Assert().Equal(uint32(2), report.ChecksumFailures[1].PageNumber)

	// only page 3 disagrees between header LSN and trailer copy
	suite.Assert().Equal([]uint64{3}, report.TornPages)

	suite.Assert().Empty(report.SdiPages)
}

func (suite *AnalyzerTestSuite) TestAnalyzeTablespaceWithSdi() {
	doc := `{"dd_object":{"name":"t"}}`
	compressed := fixtures.ZlibCompress([]byte(doc))

	img := fixtures.Page0(pageSize, 0, 1)
	fixtures.SetSdiRoot(img, pageSize, 1)
	leaf := fixtures.BuildSdiLeafPage(pageSize, 1, types.FilNull, types.FilNull,
		[]fixtures.SdiRawRecord{{
			Type:      uint32(types.SdiTypeTable),
			ID:        1,
			UncompLen: uint32(len(doc)),
			CompLen:   uint32(len(compressed)),
			Payload:   compressed,
		}})

	ts, err := tablespace.FromBytes(append(img, leaf...))
	suite.Require().NoError(err)

	report, err := AnalyzeTablespace(ts)
	suite.Require().NoError(err)
	suite.Assert().Equal([]uint64{1}, report.SdiPages)
	suite.Assert().Equal(1, report.SdiRecordCount)
	suite.Assert().Empty(report.SdiErrors)
}

func (suite *AnalyzerTestSuite) TestAnalyzeFile() {
	path := filepath.Join(suite.tempDir, "t.ibd")
	suite.Require().NoError(os.WriteFile(path, suite.buildImage(), 0644))

	report, err := NewTablespaceAnalyzer().AnalyzeFile(path)
	suite.Require().NoError(err)
	suite.Assert().Equal(path, report.Path)
	suite.Assert().Equal(uint64(5), report.PageCount)
}

func (suite *AnalyzerTestSuite) TestAnalyzeRedoLog() {
	payload := []byte{byte(types.MLogCompRecInsert)}
	blocks := [][]byte{
		fixtures.BuildDataBlock(4, false, types.LogBlockHdrSize, 3, payload),
		fixtures.BuildDataBlock(5, false, types.LogBlockHdrSize, 3, payload),
		fixtures.BuildDataBlock(6, false, 0, 3, nil),
	}
	raw := fixtures.BuildRedoLog(4096, "MySQL 8.0.30", 5, 6, blocks...)
	raw[4*types.LogBlockSize+50] ^= 0xFF // corrupt first data block

	lf, err := redolog.FromBytes(raw)
	suite.Require().NoError(err)

	report, err := AnalyzeRedoLog(lf)
	suite.Require().NoError(err)

	suite.Assert().Equal(uint64(7), report.BlockCount)
	suite.Assert().Equal(uint64(3), report.DataBlocks)
	suite.Assert().Equal([]uint64{4}, report.CorruptBlocks)
	suite.Assert().Equal(uint64(6), report.LatestCheckpoint.CheckpointNo)
	suite.Assert().Equal(uint64(2), report.RecordTypeCounts[types.MLogCompRecInsert])
}

func TestAnalyzerSuite(t *testing.T) {
	suite.Run(t, new(AnalyzerTestSuite))
}

func TestAnalyzeRedoLog_EmptyBlockCounting(t *testing.T) {
	blocks := [][]byte{fixtures.BuildDataBlock(4, false, 0, 1, nil)}
	lf, err := redolog.FromBytes(fixtures.BuildRedoLog(0, "", 1, 2, blocks...))
	if err != nil {
		t.Fatal(err)
	}
	report, err := AnalyzeRedoLog(lf)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, uint64(0), report.EmptyBlocks)
	assert.Equal(t, uint64(1), report.DataBlocks)
}
