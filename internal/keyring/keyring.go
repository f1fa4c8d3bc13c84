// Package keyring parses the legacy MySQL keyring_file binary format and
// resolves master keys for tablespace decryption. The JSON-based
// component_keyring_file is deliberately not supported.
package keyring

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/yamaru/innodb-ibd-tool/internal/types"
)

// Signature is the fixed header of a keyring_file version 2.0 file.
const Signature = "Keyring file version:2.0"

// Entry is one stored key. Lengths on disk are little-endian u64 prefixes
// in the order key_id, user_id, key_type, key, each immediately followed
// by its payload.
type Entry struct {
	KeyID   string
	UserID  string
	KeyType string // AES, RSA, ...
	Key     []byte
}

// Keyring is an immutable key-id to key mapping. Once parsed it may be
// shared read-only by any number of unwrap operations.
type Keyring struct {
	entries map[string]*Entry
	order   []string
}

// Load reads and parses a keyring_file from disk.
func Load(path string) (*Keyring, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading keyring %s", path)
	}
	return Parse(data)
}

// Parse parses the binary keyring_file layout from a buffer.
func Parse(data []byte) (*Keyring, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return nil, errors.Wrap(types.ErrUnsupportedFormat,
			"component_keyring_file (JSON) is not supported")
	}
	if !bytes.HasPrefix(data, []byte(Signature)) {
		return nil, errors.Wrap(types.ErrUnsupportedFormat, "keyring signature mismatch")
	}

	k := &Keyring{entries: make(map[string]*Entry)}
	pos := len(Signature)
	for pos < len(data) {
		entry, next, err := parseEntry(data, pos)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			break // zero-length sentinel
		}
		if _, dup := k.entries[entry.KeyID]; !dup {
			k.order = append(k.order, entry.KeyID)
		}
		k.entries[entry.KeyID] = entry
		pos = next
	}
	return k, nil
}

func parseEntry(data []byte, pos int) (*Entry, int, error) {
	readLen := func() (uint64, error) {
		if pos+8 > len(data) {
			return 0, errors.Wrapf(types.ErrTruncatedInput,
				"keyring length field at offset %d", pos)
		}
		v := binary.LittleEndian.Uint64(data[pos:])
		pos += 8
		return v, nil
	}
	readBytes := func(n uint64) ([]byte, error) {
		if n > uint64(len(data)) || pos+int(n) > len(data) {
			return nil, errors.Wrapf(types.ErrTruncatedInput,
				"keyring field of %d bytes at offset %d", n, pos)
		}
		b := data[pos : pos+int(n)]
		pos += int(n)
		return b, nil
	}

	keyIDLen, err := readLen()
	if err != nil {
		return nil, 0, err
	}
	if keyIDLen == 0 {
		return nil, pos, nil
	}
	keyID, err := readBytes(keyIDLen)
	if err != nil {
		return nil, 0, err
	}
	userIDLen, err := readLen()
	if err != nil {
		return nil, 0, err
	}
	userID, err := readBytes(userIDLen)
	if err != nil {
		return nil, 0, err
	}
	keyTypeLen, err := readLen()
	if err != nil {
		return nil, 0, err
	}
	keyType, err := readBytes(keyTypeLen)
	if err != nil {
		return nil, 0, err
	}
	keyLen, err := readLen()
	if err != nil {
		return nil, 0, err
	}
	key, err := readBytes(keyLen)
	if err != nil {
		return nil, 0, err
	}
	return &Entry{
		KeyID:   string(keyID),
		UserID:  string(userID),
		KeyType: string(keyType),
		Key:     append([]byte(nil), key...),
	}, pos, nil
}

// MasterKeyID synthesizes the key id InnoDB stores master keys under.
func MasterKeyID(serverUUID string, masterKeyID uint32) string {
	return fmt.Sprintf("INNODBKey-%s-%d", serverUUID, masterKeyID)
}

// LookupMasterKey resolves the master key for a tablespace's encryption
// header.
func (k *Keyring) LookupMasterKey(masterKeyID uint32, serverUUID string) ([]byte, bool) {
	entry, ok := k.entries[MasterKeyID(serverUUID, masterKeyID)]
	if !ok {
		return nil, false
	}
	return entry.Key, true
}

// Lookup returns the raw entry stored under id.
func (k *Keyring) Lookup(id string) (*Entry, bool) {
	e, ok := k.entries[id]
	return e, ok
}

// Len returns the number of stored keys.
func (k *Keyring) Len() int { return len(k.entries) }

// KeyIDs lists the stored key ids in file order.
func (k *Keyring) KeyIDs() []string {
	return append([]string(nil), k.order...)
}
