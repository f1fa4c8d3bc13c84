package redolog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"

	"github.com/yamaru/innodb-ibd-tool/internal/types"
	"github.com/yamaru/innodb-ibd-tool/test/fixtures"
)

// RedoLogTestSuite covers the block codec, checkpoints, and CRC policy.
type RedoLogTestSuite struct {
	suite.Suite
	tempDir string
}

func (suite *RedoLogTestSuite) SetupTest() {
	tempDir, err := os.MkdirTemp("", "redolog_test")
	suite.Require().NoError(err)
	suite.tempDir = tempDir
}

func (suite *RedoLogTestSuite) TearDownTest() {
	if suite.tempDir != "" {
		os.RemoveAll(suite.tempDir)
	}
}

func (suite *RedoLogTestSuite) writeLog(name string, data []byte) string {
	path := filepath.Join(suite.tempDir, name)
	suite.Require().NoError(os.WriteFile(path, data, 0644))
	return path
}

func (suite *RedoLogTestSuite) sampleLog() []byte {
	payload := []byte{byte(types.MLogCompRecInsert | types.MLogSingleRecFlag), 0x01, 0x02}
	data4 := fixtures.BuildDataBlock(4, true, types.LogBlockHdrSize, 9, payload)
	data5 := fixtures.BuildDataBlock(5, false, 0, 9, []byte{0xAA, 0xBB})
	return fixtures.BuildRedoLog(8192, "MySQL 8.0.32", 11, 12, data4, data5)
}

func (suite *RedoLogTestSuite) TestOpenAndHeader() {
	path := suite.writeLog("ib_logfile0", suite.sampleLog())

	lf, err := Open(path)
	suite.Require().NoError(err)
	defer lf.Close()

	suite.Assert().False(lf.IsNewFormat())
	suite.Assert().Equal(uint64(6), lf.BlockCount())

	header := lf.FileHeader()
	suite.Require().NotNil(header)
	suite.Assert().Equal(uint32(1), header.GroupID)
	suite.Assert().Equal(uint32(1), header.FileNo)
	suite.Assert().Equal(uint64(8192), header.StartLSN)
	suite.Assert().Equal("MySQL 8.0.32", header.Creator)
}

func (suite *RedoLogTestSuite) TestCheckpoints() {
	lf, err := FromBytes(suite.sampleLog())
	suite.Require().NoError(err)

	cp1, cp2 := lf.Checkpoints()
	suite.Assert().Equal(uint64(11), cp1.CheckpointNo)
	suite.Assert().Equal(uint64(12), cp2.CheckpointNo)
	suite.Assert().Equal(uint64(8192), cp1.CheckpointLSN)

	latest := lf.LatestCheckpoint()
	suite.Assert().Equal(uint64(12), latest.CheckpointNo)
}

func (suite *RedoLogTestSuite) TestLatestCheckpointHigherInFirstSlot() {
	log := fixtures.BuildRedoLog(100, "MariaDB 10.6", 20, 7)
	lf, err := FromBytes(log)
	suite.Require().NoError(err)
	suite.Assert().Equal(uint64(20), lf.LatestCheckpoint().CheckpointNo)
}

func (suite *RedoLogTestSuite) TestDataBlocks() {
	lf, err := FromBytes(suite.sampleLog())
	suite.Require().NoError(err)

	block, err := lf.ReadBlock(4)
	suite.Require().NoError(err)
	suite.Assert().Equal(uint32(4), block.BlockNumber)
	suite.Assert().True(block.FlushFlag)
	suite.Assert().Equal(uint16(types.LogBlockHdrSize), block.FirstRecGroup)
	suite.Assert().Equal(uint32(9), block.CheckpointNo)
	suite.Assert().True(block.CrcValid)
	suite.Assert().Equal(block.StoredCrc, block.CalculatedCrc)
	suite.Assert().Len(block.Data, types.LogBlockDataSize)

	rt, ok := FirstRecordType(block)
	suite.Require().True(ok)
	suite.Assert().Equal(types.MLogCompRecInsert, rt.Base())
	suite.Assert().True(rt.IsSingleRec())

	block5, err := lf.ReadBlock(5)
	suite.Require().NoError(err)
	suite.Assert().False(block5.FlushFlag)
	_, ok = FirstRecordType(block5)
	suite.Assert().False(ok)
}

// Flipping any bit in the covered range must flip the CRC verdict, but
// iteration continues: the mismatch is a finding on the block.
func (suite *RedoLogTestSuite) TestBlockCrcBitFlip() {
	log := suite.sampleLog()
	corruptOffset := 4*types.LogBlockSize + 100
	log[corruptOffset] ^= 0x04

	lf, err := FromBytes(log)
	suite.Require().NoError(err)

	var verdicts []bool
	err = lf.ForEachDataBlock(func(n uint64, block *types.LogBlock) error {
		verdicts = append(verdicts, block.CrcValid)
		return nil
	})
	suite.Require().NoError(err)
	suite.Assert().Equal([]bool{false, true}, verdicts)
}

func (suite *RedoLogTestSuite) TestForEachDataBlockEarlyStop() {
	lf, err := FromBytes(suite.sampleLog())
	suite.Require().NoError(err)

	stop := errors.New("enough")
	var count int
	err = lf.ForEachDataBlock(func(n uint64, block *types.LogBlock) error {
		count++
		return stop
	})
	suite.Require().Error(err)
	suite.Assert().True(errors.Is(err, stop))
	suite.Assert().Equal(1, count)
}

func (suite *RedoLogTestSuite) TestNewFormatDetection() {
	path := suite.writeLog("#ib_redo123", suite.sampleLog())
	lf, err := Open(path)
	suite.Require().NoError(err)
	defer lf.Close()
	suite.Assert().True(lf.IsNewFormat())

	suite.Assert().True(IsNewFormatName("/var/lib/mysql/#innodb_redo/#ib_redo42"))
	suite.Assert().False(IsNewFormatName("/var/lib/mysql/ib_logfile0"))
}

func (suite *RedoLogTestSuite) TestTooSmall() {
	_, err := FromBytes(make([]byte, 3*types.LogBlockSize))
	suite.Require().Error(err)
	suite.Assert().True(errors.Is(err, types.ErrTooSmall))
}

func (suite *RedoLogTestSuite) TestReadBlockOutOfRange() {
	lf, err := FromBytes(suite.sampleLog())
	suite.Require().NoError(err)

	_, err = lf.ReadBlock(6)
	suite.Require().Error(err)
	suite.Assert().True(errors.Is(err, types.ErrPageOutOfRange))
}

func (suite *RedoLogTestSuite) TestParseBlockTruncated() {
	_, err := ParseBlock(make([]byte, 100))
	suite.Require().Error(err)
	suite.Assert().True(errors.Is(err, types.ErrTruncatedInput))
}

func TestRedoLogSuite(t *testing.T) {
	suite.Run(t, new(RedoLogTestSuite))
}
