// Package tablespace opens InnoDB tablespace files (.ibd, ibdata1) or
// in-memory images, infers their page size and vendor from page 0, and
// serves whole pages with transparent decryption when a decryption
// context is attached.
package tablespace

import (
	"bytes"
	"io"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/yamaru/innodb-ibd-tool/internal/crypt"
	"github.com/yamaru/innodb-ibd-tool/internal/page"
	"github.com/yamaru/innodb-ibd-tool/internal/types"
)

// Tablespace owns the backing storage, the inferred vendor, the cached
// page-0 FSP header, and optionally the unwrapped decryption context.
// A handle is exclusively owned by its caller; page reads observe the
// on-disk state at the time of each read.
type Tablespace struct {
	src      io.ReaderAt
	closer   io.Closer
	path     string
	fileSize int64

	pageSize  uint32
	pageCount uint64
	vendor    types.Vendor
	fsp       *types.FspHeader
	encInfo   *types.EncryptionInfo
	decCtx    *types.DecryptionContext
}

// Open opens a tablespace file, inferring the page size from page 0.
func Open(path string) (*Tablespace, error) {
	return openFile(path, 0)
}

// OpenWithPageSize opens a tablespace file with a forced page size,
// bypassing FSP flag inference.
func OpenWithPageSize(path string, pageSize uint32) (*Tablespace, error) {
	if !types.IsSupportedPageSize(pageSize) {
		return nil, errors.Wrapf(types.ErrInvalidPageSize, "%d", pageSize)
	}
	return openFile(path, pageSize)
}

func openFile(path string, forced uint32) (*Tablespace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening tablespace %s", path)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	ts := &Tablespace{src: f, closer: f, path: path, fileSize: st.Size()}
	if err := ts.init(forced); err != nil {
		f.Close()
		return nil, err
	}
	return ts, nil
}

// FromBytes opens an in-memory tablespace image, inferring the page size.
func FromBytes(buf []byte) (*Tablespace, error) {
	ts := &Tablespace{src: bytes.NewReader(buf), fileSize: int64(len(buf))}
	if err := ts.init(0); err != nil {
		return nil, err
	}
	return ts, nil
}

// FromBytesWithPageSize opens an in-memory image with a forced page size.
func FromBytesWithPageSize(buf []byte, pageSize uint32) (*Tablespace, error) {
	if !types.IsSupportedPageSize(pageSize) {
		return nil, errors.Wrapf(types.ErrInvalidPageSize, "%d", pageSize)
	}
	ts := &Tablespace{src: bytes.NewReader(buf), fileSize: int64(len(buf))}
	if err := ts.init(pageSize); err != nil {
		return nil, err
	}
	return ts, nil
}

// init reads page 0, detects the vendor, settles the page size, and
// caches the FSP header and encryption info for the handle's lifetime.
func (ts *Tablespace) init(forced uint32) error {
	probe := make([]byte, types.FilHeaderSize+types.FspHeaderSize)
	if ts.fileSize < int64(len(probe)) {
		return errors.Wrapf(types.ErrTooSmall,
			"%d bytes cannot hold a page header", ts.fileSize)
	}
	if _, err := ts.src.ReadAt(probe, 0); err != nil {
		return errors.Wrap(err, "reading page 0 header")
	}
	fsp, err := page.ParseFspHeader(probe)
	if err != nil {
		return err
	}
	ts.vendor = page.DetectVendor(fsp.Flags, "")

	if forced != 0 {
		ts.pageSize = forced
	} else {
		sz, err := page.PageSizeFromFlags(fsp.Flags, ts.vendor)
		if err != nil {
			return err
		}
		ts.pageSize = sz
	}
	if ts.fileSize < int64(ts.pageSize) {
		return errors.Wrapf(types.ErrTooSmall,
			"%d bytes is less than one %d-byte page", ts.fileSize, ts.pageSize)
	}
	ts.pageCount = uint64(ts.fileSize) / uint64(ts.pageSize)

	page0 := make([]byte, ts.pageSize)
	if _, err := ts.src.ReadAt(page0, 0); err != nil {
		return errors.Wrap(err, "reading page 0")
	}
	fsp, err = page.ParseFspHeader(page0)
	if err != nil {
		return err
	}
	ts.fsp = fsp

	info, err := crypt.ParseEncryptionInfo(page0, ts.pageSize)
	if err != nil && !errors.Is(err, types.ErrUnsupportedFormat) {
		return err
	}
	ts.encInfo = info
	return nil
}

// PageSize returns the page size in bytes.
func (ts *Tablespace) PageSize() uint32 { return ts.pageSize }

// PageCount returns the number of whole pages in the backing storage.
func (ts *Tablespace) PageCount() uint64 { return ts.pageCount }

// FileSize returns the backing storage size in bytes.
func (ts *Tablespace) FileSize() uint64 { return uint64(ts.fileSize) }

// Path returns the file path, empty for in-memory images.
func (ts *Tablespace) Path() string { return ts.path }

// FspHeader returns the cached page-0 FSP header.
func (ts *Tablespace) FspHeader() *types.FspHeader { return ts.fsp }

// VendorInfo returns the detected vendor.
func (ts *Tablespace) VendorInfo() types.Vendor { return ts.vendor }

// EncryptionInfo returns the parsed encryption header of page 0, nil for
// unencrypted tablespaces.
func (ts *Tablespace) EncryptionInfo() *types.EncryptionInfo { return ts.encInfo }

// IsEncrypted reports whether page 0 carries encryption info or the FSP
// encryption flag.
func (ts *Tablespace) IsEncrypted() bool {
	return ts.encInfo != nil || (ts.fsp != nil && ts.fsp.HasEncryptionFlag())
}

// SetDecryptionContext attaches the unwrapped tablespace key and IV.
// Subsequent reads of encrypted pages decrypt transparently.
func (ts *Tablespace) SetDecryptionContext(ctx *types.DecryptionContext) {
	ts.decCtx = ctx
}

// ReadPage returns page n. With a decryption context attached, pages
// whose FIL type marks them encrypted are returned decrypted in a fresh
// buffer.
func (ts *Tablespace) ReadPage(n uint64) ([]byte, error) {
	if n >= ts.pageCount {
		return nil, errors.Wrapf(types.ErrPageOutOfRange,
			"page %d of %d", n, ts.pageCount)
	}
	buf := make([]byte, ts.pageSize)
	if _, err := ts.src.ReadAt(buf, int64(n)*int64(ts.pageSize)); err != nil {
		return nil, errors.Wrapf(err, "reading page %d", n)
	}
	if ts.decCtx != nil {
		fil, err := page.ParseFilHeader(buf)
		if err != nil {
			return nil, err
		}
		if fil.PageType.IsEncryptedType() {
			out, err := crypt.DecryptPage(buf, ts.pageSize, ts.decCtx)
			if err != nil {
				return nil, errors.Wrapf(err, "decrypting page %d", n)
			}
			return out, nil
		}
	}
	return buf, nil
}

// ForEachPage calls cb for every page in order. The first error returned
// by cb stops the iteration and is surfaced unchanged.
func (ts *Tablespace) ForEachPage(cb func(n uint64, pageBuf []byte) error) error {
	for n := uint64(0); n < ts.pageCount; n++ {
		buf, err := ts.ReadPage(n)
		if err != nil {
			return err
		}
		if err := cb(n, buf); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the backing file, if any.
func (ts *Tablespace) Close() error {
	if ts.closer != nil {
		return ts.closer.Close()
	}
	return nil
}
