package types

import "fmt"

// PageType is the raw FIL_PAGE_TYPE code from a page header.
type PageType uint16

// Page type codes from MySQL fil0fil.h. MariaDB reuses code 18 for
// instant ALTER metadata, so naming goes through Describe with a Vendor.
const (
	PageTypeAllocated            PageType = 0
	PageTypeUnused               PageType = 1
	PageTypeUndoLog              PageType = 2
	PageTypeInode                PageType = 3
	PageTypeIbufFreeList         PageType = 4
	PageTypeIbufBitmap           PageType = 5
	PageTypeSys                  PageType = 6
	PageTypeTrxSys               PageType = 7
	PageTypeFspHdr               PageType = 8
	PageTypeXdes                 PageType = 9
	PageTypeBlob                 PageType = 10
	PageTypeZblob                PageType = 11
	PageTypeZblob2               PageType = 12
	PageTypeUnknown              PageType = 13
	PageTypeCompressed           PageType = 14
	PageTypeEncrypted            PageType = 15
	PageTypeCompressedEncrypted  PageType = 16
	PageTypeEncryptedRtree       PageType = 17
	PageTypeSdiBlob              PageType = 18 // MariaDB: instant ALTER metadata
	PageTypeSdiZblob             PageType = 19
	PageTypeLegacyDblwr          PageType = 20
	PageTypeRsegArray            PageType = 21
	PageTypeLobIndex             PageType = 22
	PageTypeLobData              PageType = 23
	PageTypeLobFirst             PageType = 24
	PageTypeZlobFirst            PageType = 25
	PageTypeZlobData             PageType = 26
	PageTypeZlobIndex            PageType = 27
	PageTypeZlobFrag             PageType = 28
	PageTypeZlobFragEntry        PageType = 29
	PageTypeSdi                  PageType = 17853
	PageTypeSdiBlobChain         PageType = 17854
	PageTypeIndex                PageType = 17855
)

// IsEncryptedType reports whether the on-disk body of the page is encrypted
// and needs the tablespace key before any further interpretation.
func (t PageType) IsEncryptedType() bool {
	return t == PageTypeEncrypted || t == PageTypeCompressedEncrypted || t == PageTypeEncryptedRtree
}

// TypeInfo is the resolved description of a page type code for a given
// vendor. Code always round-trips to the input.
type TypeInfo struct {
	Code        uint16
	Name        string
	Description string
	Usage       string
}

type typeEntry struct {
	name  string
	desc  string
	usage string
}

var pageTypeTable = map[PageType]typeEntry{
	PageTypeAllocated:           {"ALLOCATED", "Freshly allocated page", "reserved but not yet used by any segment"},
	PageTypeUnused:              {"UNUSED", "Unused page", "kept for historical compatibility"},
	PageTypeUndoLog:             {"UNDO_LOG", "Undo log page", "rollback segment records for MVCC and transaction rollback"},
	PageTypeInode:               {"INODE", "Segment inode page", "file segment bookkeeping"},
	PageTypeIbufFreeList:        {"IBUF_FREE_LIST", "Insert buffer free list", "legacy change-buffer free list"},
	PageTypeIbufBitmap:          {"IBUF_BITMAP", "Insert buffer bitmap", "change-buffer state tracking"},
	PageTypeSys:                 {"SYS", "System page", "miscellaneous system bookkeeping"},
	PageTypeTrxSys:              {"TRX_SYS", "Transaction system page", "transaction ids, rollback segment directory"},
	PageTypeFspHdr:              {"FSP_HDR", "File space header", "page 0 of a tablespace: size, flags, free lists"},
	PageTypeXdes:                {"XDES", "Extent descriptor page", "tracks 64-page extents past the first descriptor page"},
	PageTypeBlob:                {"BLOB", "Uncompressed BLOB page", "off-page storage for large column values"},
	PageTypeZblob:               {"ZBLOB", "First compressed BLOB page", "off-page storage, compressed"},
	PageTypeZblob2:              {"ZBLOB2", "Subsequent compressed BLOB page", "off-page storage, compressed continuation"},
	PageTypeUnknown:             {"UNKNOWN", "Unknown page type", "written by older servers when the type was lost"},
	PageTypeCompressed:          {"COMPRESSED", "Transparently compressed page", "hole-punched page compression"},
	PageTypeEncrypted:           {"ENCRYPTED", "Encrypted page", "body encrypted with the tablespace key"},
	PageTypeCompressedEncrypted: {"COMPRESSED_AND_ENCRYPTED", "Compressed then encrypted page", "page compression plus tablespace encryption"},
	PageTypeEncryptedRtree:      {"ENCRYPTED_RTREE", "Encrypted R-tree page", "spatial index page, encrypted"},
	PageTypeSdiZblob:            {"SDI_ZBLOB", "Compressed SDI BLOB page", "dictionary metadata overflow, compressed"},
	PageTypeLegacyDblwr:         {"LEGACY_DBLWR", "Legacy doublewrite buffer page", "pre-8.0.20 doublewrite area"},
	PageTypeRsegArray:           {"RSEG_ARRAY", "Rollback segment array page", "rollback segment directory"},
	PageTypeLobIndex:            {"LOB_INDEX", "LOB index page", "large object first-level index"},
	PageTypeLobData:             {"LOB_DATA", "LOB data page", "large object data"},
	PageTypeLobFirst:            {"LOB_FIRST", "First LOB page", "large object entry page"},
	PageTypeZlobFirst:           {"ZLOB_FIRST", "First compressed LOB page", "compressed large object entry page"},
	PageTypeZlobData:            {"ZLOB_DATA", "Compressed LOB data page", "compressed large object data"},
	PageTypeZlobIndex:           {"ZLOB_INDEX", "Compressed LOB index page", "compressed large object index"},
	PageTypeZlobFrag:            {"ZLOB_FRAG", "Compressed LOB fragment page", "compressed large object fragments"},
	PageTypeZlobFragEntry:       {"ZLOB_FRAG_ENTRY", "Compressed LOB fragment entry page", "fragment directory"},
	PageTypeSdi:                 {"SDI", "Serialized dictionary information index page", "B+tree of zlib-compressed JSON schema records"},
	PageTypeSdiBlobChain:        {"SDI_BLOB", "SDI overflow page", "continuation of an SDI record payload spanning pages"},
	PageTypeIndex:               {"INDEX", "B+tree index page", "clustered or secondary index records"},
}

// Describe resolves a raw page type code for a vendor. Code 18 means SDI
// BLOB storage on MySQL and Percona but instant ALTER metadata on MariaDB.
// Unknown codes resolve to an UNKNOWN_<n> entry; the function is total and
// the returned Code always equals the input.
func Describe(code uint16, vendor Vendor) TypeInfo {
	t := PageType(code)
	if t == PageTypeSdiBlob {
		if vendor.Kind == VendorMariaDB {
			return TypeInfo{Code: code, Name: "INSTANT",
				Description: "Instant ALTER metadata page",
				Usage:       "MariaDB instant ADD/DROP COLUMN bookkeeping"}
		}
		return TypeInfo{Code: code, Name: "SDI_BLOB",
			Description: "SDI BLOB page",
			Usage:       "dictionary metadata overflow storage"}
	}
	if e, ok := pageTypeTable[t]; ok {
		return TypeInfo{Code: code, Name: e.name, Description: e.desc, Usage: e.usage}
	}
	return TypeInfo{Code: code, Name: fmt.Sprintf("UNKNOWN_%d", code),
		Description: "Unrecognized page type code",
		Usage:       "possibly corrupt header or a newer on-disk format"}
}

// String names the type using the MySQL interpretation; use Describe for
// vendor-aware naming.
func (t PageType) String() string {
	return Describe(uint16(t), Vendor{Kind: VendorMySQL}).Name
}
