package tablespace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"

	"github.com/yamaru/innodb-ibd-tool/internal/crypt"
	"github.com/yamaru/innodb-ibd-tool/internal/keyring"
	"github.com/yamaru/innodb-ibd-tool/internal/page"
	"github.com/yamaru/innodb-ibd-tool/internal/types"
	"github.com/yamaru/innodb-ibd-tool/test/fixtures"
)

// TablespaceTestSuite covers opening, page iteration, and transparent
// decryption.
type TablespaceTestSuite struct {
	suite.Suite
	tempDir string
}

func (suite *TablespaceTestSuite) SetupTest() {
	tempDir, err := os.MkdirTemp("", "tablespace_test")
	suite.Require().NoError(err)
	suite.tempDir = tempDir
}

func (suite *TablespaceTestSuite) TearDownTest() {
	if suite.tempDir != "" {
		os.RemoveAll(suite.tempDir)
	}
}

func (suite *TablespaceTestSuite) writeFile(data []byte) string {
	path := filepath.Join(suite.tempDir, "t.ibd")
	suite.Require().NoError(os.WriteFile(path, data, 0644))
	return path
}

// twoPageImage builds page 0 plus one INDEX page at the default size.
func (suite *TablespaceTestSuite) twoPageImage() []byte {
	img := fixtures.Page0(16384, 0, 5)
	p1 := fixtures.BlankPage(16384)
	fixtures.SetFilHeader(p1, types.FilHeader{
		PageNumber: 1, PrevPage: types.FilNull, NextPage: types.FilNull,
		LSN: 100, PageType: types.PageTypeIndex, SpaceID: 5,
	})
	fixtures.StampCrc32c(p1, 16384)
	return append(img, p1...)
}

func (suite *TablespaceTestSuite) TestOpenDefaultPageSize() {
	path := suite.writeFile(suite.twoPageImage())

	ts, err := Open(path)
	suite.Require().NoError(err)
	defer ts.Close()

	suite.Assert().Equal(uint32(16384), ts.PageSize())
	suite.Assert().Equal(uint64(2), ts.PageCount())
	suite.Assert().Equal(uint64(32768), ts.FileSize())
	suite.Assert().Equal(types.VendorMySQL, ts.VendorInfo().Kind)
	suite.Require().NotNil(ts.FspHeader())
	suite.Assert().Equal(uint32(5), ts.FspHeader().SpaceID)
	suite.Assert().False(ts.IsEncrypted())
	suite.Assert().Nil(ts.EncryptionInfo())
}

// Opening the same file twice must yield identical page size, vendor,
// and FSP header.
func (suite *TablespaceTestSuite) TestOpenIsDeterministic() {
	path := suite.writeFile(suite.twoPageImage())

	ts1, err := Open(path)
	suite.Require().NoError(err)
	defer ts1.Close()
	ts2, err := Open(path)
	suite.Require().NoError(err)
	defer ts2.Close()

	suite.Assert().Equal(ts1.PageSize(), ts2.PageSize())
	suite.Assert().Equal(ts1.VendorInfo(), ts2.VendorInfo())
	suite.Assert().Equal(ts1.FspHeader(), ts2.FspHeader())
}

func (suite *TablespaceTestSuite) TestFullCrc32FlagsDecodeDeterministically() {
	// bit 4 plus ssize 4 decodes to 8192 pages no matter what the file
	// size suggests.
	img := fixtures.Page0(16384, 1<<4|0x4, 1)
	ts, err := FromBytes(img)
	suite.Require().NoError(err)
	suite.Assert().True(ts.VendorInfo().IsFullCrc32())
	suite.Assert().Equal(uint32(8192), ts.PageSize())
	suite.Assert().Equal(uint64(2), ts.PageCount())
}

func (suite *TablespaceTestSuite) TestReadPage() {
	ts, err := FromBytes(suite.twoPageImage())
	suite.Require().NoError(err)

	buf, err := ts.ReadPage(1)
	suite.Require().NoError(err)
	suite.Assert().Len(buf, 16384)

	fil, err := page.ParseFilHeader(buf)
	suite.Require().NoError(err)
	suite.Assert().Equal(types.PageTypeIndex, fil.PageType)
	suite.Assert().Equal(uint32(1), fil.PageNumber)
}

func (suite *TablespaceTestSuite) TestReadPageOutOfRange() {
	ts, err := FromBytes(suite.twoPageImage())
	suite.Require().NoError(err)

	_, err = ts.ReadPage(2)
	suite.Require().Error(err)
	suite.Assert().True(errors.Is(err, types.ErrPageOutOfRange))
}

func (suite *TablespaceTestSuite) TestTooSmall() {
	_, err := FromBytes(make([]byte, 100))
	suite.Require().Error(err)
	suite.Assert().True(errors.Is(err, types.ErrTooSmall))

	// a page-0 header that decodes fine but a file below one page
	img := fixtures.Page0(16384, 0, 1)[:8000]
	_, err = FromBytes(img)
	suite.Require().Error(err)
	suite.Assert().True(errors.Is(err, types.ErrTooSmall))
}

func (suite *TablespaceTestSuite) TestForcedPageSize() {
	img := suite.twoPageImage()
	ts, err := FromBytesWithPageSize(img, 8192)
	suite.Require().NoError(err)
	suite.Assert().Equal(uint32(8192), ts.PageSize())
	suite.Assert().Equal(uint64(4), ts.PageCount())

	_, err = FromBytesWithPageSize(img, 1000)
	suite.Require().Error(err)
	suite.Assert().True(errors.Is(err, types.ErrInvalidPageSize))
}

func (suite *TablespaceTestSuite) TestForEachPage() {
	ts, err := FromBytes(suite.twoPageImage())
	suite.Require().NoError(err)

	var pages []uint64
	err = ts.ForEachPage(func(n uint64, buf []byte) error {
		suite.Assert().Len(buf, 16384)
		pages = append(pages, n)
		return nil
	})
	suite.Require().NoError(err)
	suite.Assert().Equal([]uint64{0, 1}, pages)
}

func (suite *TablespaceTestSuite) TestForEachPageEarlyStop() {
	ts, err := FromBytes(suite.twoPageImage())
	suite.Require().NoError(err)

	stop := errors.New("stop here")
	var visited int
	err = ts.ForEachPage(func(n uint64, buf []byte) error {
		visited++
		return stop
	})
	suite.Require().Error(err)
	suite.Assert().True(errors.Is(err, stop))
	suite.Assert().Equal(1, visited)
}

func (suite *TablespaceTestSuite) TestTransparentDecryption() {
	masterKey := make([]byte, 32)
	var tsKey [32]byte
	var iv [16]byte
	for i := range masterKey {
		masterKey[i] = byte(i ^ 0x5A)
	}
	for i := range tsKey {
		tsKey[i] = byte(i + 1)
	}
	for i := range iv {
		iv[i] = byte(0xF0 - i)
	}

	page0 := fixtures.Page0(16384, uint32(types.FspFlagEncryption), 3)
	info := fixtures.BuildEncryptionInfo(42, "UUID", masterKey, tsKey, iv)
	fixtures.EmbedEncryptionInfo(page0, 5270, info)

	p1 := fixtures.BlankPage(16384)
	fixtures.SetFilHeader(p1, types.FilHeader{
		PageNumber: 1, PrevPage: types.FilNull, NextPage: types.FilNull,
		LSN: 500, PageType: types.PageTypeIndex, SpaceID: 3,
	})
	p1[4000] = 0xEE
	fixtures.EncryptPageBody(p1, 16384, tsKey, iv)

	ts, err := FromBytes(append(page0, p1...))
	suite.Require().NoError(err)
	suite.Assert().True(ts.IsEncrypted())
	suite.Require().NotNil(ts.EncryptionInfo())
	suite.Assert().Equal(uint32(42), ts.EncryptionInfo().MasterKeyID)

	// without a context the encrypted page comes back raw
	raw, err := ts.ReadPage(1)
	suite.Require().NoError(err)
	fil, err := page.ParseFilHeader(raw)
	suite.Require().NoError(err)
	suite.Assert().Equal(types.PageTypeEncrypted, fil.PageType)

	kr, err := keyring.Parse(fixtures.BuildKeyring(fixtures.MasterKeyEntry("UUID", 42, masterKey)))
	suite.Require().NoError(err)
	ctx, err := crypt.UnwrapTablespaceKey(ts.EncryptionInfo(), kr)
	suite.Require().NoError(err)
	ts.SetDecryptionContext(ctx)

	clear, err := ts.ReadPage(1)
	suite.Require().NoError(err)
	fil, err = page.ParseFilHeader(clear)
	suite.Require().NoError(err)
	suite.Assert().Equal(types.PageTypeIndex, fil.PageType)
	suite.Assert().Equal(byte(0xEE), clear[4000])
}

func (suite *TablespaceTestSuite) TestOpenNonExistentFile() {
	_, err := Open(filepath.Join(suite.tempDir, "missing.ibd"))
	suite.Assert().Error(err)
}

func TestTablespaceSuite(t *testing.T) {
	suite.Run(t, new(TablespaceTestSuite))
}
