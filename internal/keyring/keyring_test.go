package keyring

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"

	"github.com/yamaru/innodb-ibd-tool/internal/types"
	"github.com/yamaru/innodb-ibd-tool/test/fixtures"
)

// KeyringTestSuite covers the legacy keyring_file parser.
type KeyringTestSuite struct {
	suite.Suite
	tempDir string
}

func (suite *KeyringTestSuite) SetupTest() {
	tempDir, err := os.MkdirTemp("", "keyring_test")
	suite.Require().NoError(err)
	suite.tempDir = tempDir
}

func (suite *KeyringTestSuite) TearDownTest() {
	if suite.tempDir != "" {
		os.RemoveAll(suite.tempDir)
	}
}

func (suite *KeyringTestSuite) writeKeyring(data []byte) string {
	path := filepath.Join(suite.tempDir, "keyring")
	suite.Require().NoError(os.WriteFile(path, data, 0600))
	return path
}

func (suite *KeyringTestSuite) TestLoadAndLookup() {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	data := fixtures.BuildKeyring(fixtures.MasterKeyEntry("UUID", 42, key))
	path := suite.writeKeyring(data)

	kr, err := Load(path)
	suite.Require().NoError(err)
	suite.Assert().Equal(1, kr.Len())

	got, ok := kr.LookupMasterKey(42, "UUID")
	suite.Require().True(ok)
	suite.Assert().Equal(key, got)
}

func (suite *KeyringTestSuite) TestLookupMiss() {
	key := make([]byte, 32)
	kr, err := Parse(fixtures.BuildKeyring(fixtures.MasterKeyEntry("UUID", 42, key)))
	suite.Require().NoError(err)

	_, ok := kr.LookupMasterKey(43, "UUID")
	suite.Assert().False(ok)
	_, ok = kr.LookupMasterKey(42, "UUIE")
	suite.Assert().False(ok)
}

func (suite *KeyringTestSuite) TestMultipleEntries() {
	kr, err := Parse(fixtures.BuildKeyring(
		fixtures.MasterKeyEntry("aaaa", 1, []byte("key-one-................")),
		fixtures.MasterKeyEntry("bbbb", 2, []byte("key-two-................")),
		fixtures.KeyringEntry{KeyID: "user-key", UserID: "root@localhost", KeyType: "AES", Key: []byte("k")},
	))
	suite.Require().NoError(err)
	suite.Assert().Equal(3, kr.Len())
	suite.Assert().Equal([]string{
		MasterKeyID("aaaa", 1),
		MasterKeyID("bbbb", 2),
		"user-key",
	}, kr.KeyIDs())

	entry, ok := kr.Lookup("user-key")
	suite.Require().True(ok)
	suite.Assert().Equal("root@localhost", entry.UserID)
	suite.Assert().Equal("AES", entry.KeyType)
}

func (suite *KeyringTestSuite) TestComponentKeyringRejected() {
	_, err := Parse([]byte(`{"version": "1.0", "elements": []}`))
	suite.Require().Error(err)
	suite.Assert().True(errors.Is(err, types.ErrUnsupportedFormat))
}

func (suite *KeyringTestSuite) TestBadSignature() {
	_, err := Parse([]byte("Keyring file version:1.0garbage"))
	suite.Require().Error(err)
	suite.Assert().True(errors.Is(err, types.ErrUnsupportedFormat))
}

func (suite *KeyringTestSuite) TestTruncatedEntry() {
	data := fixtures.BuildKeyring(fixtures.MasterKeyEntry("UUID", 7, make([]byte, 32)))
	// cut inside the last field, before the sentinel
	_, err := Parse(data[:len(data)-12])
	suite.Require().Error(err)
	suite.Assert().True(errors.Is(err, types.ErrTruncatedInput))
}

func (suite *KeyringTestSuite) TestSignatureOnly() {
	kr, err := Parse([]byte(Signature))
	suite.Require().NoError(err)
	suite.Assert().Equal(0, kr.Len())
}

func (suite *KeyringTestSuite) TestLoadMissingFile() {
	_, err := Load(filepath.Join(suite.tempDir, "nope"))
	suite.Assert().Error(err)
}

func TestKeyringSuite(t *testing.T) {
	suite.Run(t, new(KeyringTestSuite))
}

func TestMasterKeyID(t *testing.T) {
	id := MasterKeyID("3f9a-uuid", 9)
	if id != "INNODBKey-3f9a-uuid-9" {
		t.Errorf("unexpected master key id %q", id)
	}
}
