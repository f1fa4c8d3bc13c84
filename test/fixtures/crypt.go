package fixtures

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"hash/crc32"

	"github.com/yamaru/innodb-ibd-tool/internal/types"
)

// BuildEncryptionInfo serializes an encryption info block: the v2 magic,
// master key id, server UUID, and the master-key-encrypted tablespace
// key + IV with their plaintext CRC-32.
func BuildEncryptionInfo(masterKeyID uint32, serverUUID string, masterKey []byte, tsKey [32]byte, iv [16]byte) []byte {
	plain := make([]byte, 48)
	copy(plain, tsKey[:])
	copy(plain[32:], iv[:])

	block, err := aes.NewCipher(masterKey)
	if err != nil {
		panic(err)
	}
	encrypted := make([]byte, 48)
	for i := 0; i < 48; i += aes.BlockSize {
		block.Encrypt(encrypted[i:i+aes.BlockSize], plain[i:i+aes.BlockSize])
	}

	blob := make([]byte, 128)
	copy(blob, encrypted)
	binary.BigEndian.PutUint32(blob[48:], crc32.ChecksumIEEE(plain))

	out := []byte{0x6C, 0x43, 0x42} // "lCB"
	var id [4]byte
	binary.BigEndian.PutUint32(id[:], masterKeyID)
	out = append(out, id[:]...)
	uuidField := make([]byte, 36)
	copy(uuidField, serverUUID)
	out = append(out, uuidField...)
	return append(out, blob...)
}

// EmbedEncryptionInfo copies an encryption info block into a page-0
// buffer at the given offset.
func EmbedEncryptionInfo(page0 []byte, offset int, info []byte) {
	copy(page0[offset:], info)
}

// EncryptPageBody AES-256-CBC encrypts the block-aligned prefix of a
// page body the way the server writes encrypted pages, and marks the
// page type encrypted. The original type is returned so tests can check
// it reappears after decryption.
func EncryptPageBody(pageBuf []byte, pageSize uint32, key [32]byte, iv [16]byte) types.PageType {
	original := types.PageType(binary.BigEndian.Uint16(pageBuf[types.FilPageType:]))

	body := int(pageSize) - types.FilHeaderSize - types.FilTrailerSize
	aligned := body - body%aes.BlockSize

	block, err := aes.NewCipher(key[:])
	if err != nil {
		panic(err)
	}
	mode := cipher.NewCBCEncrypter(block, iv[:])
	region := pageBuf[types.FilHeaderSize : types.FilHeaderSize+aligned]
	mode.CryptBlocks(region, region)

	// The server parks the original type in the flush-LSN field of
	// encrypted pages.
	binary.BigEndian.PutUint16(pageBuf[types.FilPageFlushLSN:], uint16(original))
	binary.BigEndian.PutUint16(pageBuf[types.FilPageType:], uint16(types.PageTypeEncrypted))
	return original
}
