package fixtures

import (
	"encoding/binary"
	"fmt"
)

// keyringSignature mirrors the on-disk header the parser expects.
const keyringSignature = "Keyring file version:2.0"

// KeyringEntry is one key to serialize into a keyring_file image.
type KeyringEntry struct {
	KeyID   string
	UserID  string
	KeyType string
	Key     []byte
}

// BuildKeyring serializes entries into the legacy keyring_file binary
// layout: the version signature followed by little-endian length-prefixed
// fields, closed by a zero-length sentinel.
func BuildKeyring(entries ...KeyringEntry) []byte {
	buf := []byte(keyringSignature)
	appendField := func(b []byte, field []byte) []byte {
		var l [8]byte
		binary.LittleEndian.PutUint64(l[:], uint64(len(field)))
		b = append(b, l[:]...)
		return append(b, field...)
	}
	for _, e := range entries {
		buf = appendField(buf, []byte(e.KeyID))
		buf = appendField(buf, []byte(e.UserID))
		buf = appendField(buf, []byte(e.KeyType))
		buf = appendField(buf, e.Key)
	}
	var sentinel [8]byte
	return append(buf, sentinel[:]...)
}

// MasterKeyEntry builds the entry InnoDB would store for a master key.
func MasterKeyEntry(serverUUID string, masterKeyID uint32, key []byte) KeyringEntry {
	return KeyringEntry{
		KeyID:   fmt.Sprintf("INNODBKey-%s-%d", serverUUID, masterKeyID),
		UserID:  "",
		KeyType: "AES",
		Key:     key,
	}
}
