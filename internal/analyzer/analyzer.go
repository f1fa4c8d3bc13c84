// Package analyzer runs whole-file scans over tablespaces and redo logs,
// aggregating the per-page and per-block results of the parsing packages
// into reports the presentation layers render.
package analyzer

import (
	"fmt"

	"github.com/yamaru/innodb-ibd-tool/internal/checksum"
	"github.com/yamaru/innodb-ibd-tool/internal/page"
	"github.com/yamaru/innodb-ibd-tool/internal/redolog"
	"github.com/yamaru/innodb-ibd-tool/internal/sdi"
	"github.com/yamaru/innodb-ibd-tool/internal/tablespace"
	"github.com/yamaru/innodb-ibd-tool/internal/types"
)

// tablespaceAnalyzer implements TablespaceAnalyzer.
type tablespaceAnalyzer struct{}

// NewTablespaceAnalyzer creates a TablespaceAnalyzer.
func NewTablespaceAnalyzer() TablespaceAnalyzer {
	return &tablespaceAnalyzer{}
}

// AnalyzeFile opens and fully scans a tablespace file.
func (a *tablespaceAnalyzer) AnalyzeFile(filename string) (*TablespaceReport, error) {
	ts, err := tablespace.Open(filename)
	if err != nil {
		return nil, err
	}
	defer ts.Close()
	return AnalyzeTablespace(ts)
}

// AnalyzeTablespace scans every page of an open tablespace: checksum
// validation under the detected vendor, torn-page detection, a page type
// histogram, and SDI discovery. Checksum failures are findings, never
// errors, so a damaged file still produces a full report.
func AnalyzeTablespace(ts *tablespace.Tablespace) (*TablespaceReport, error) {
	report := &TablespaceReport{
		Path:           ts.Path(),
		FileSize:       ts.FileSize(),
		PageSize:       ts.PageSize(),
		PageCount:      ts.PageCount(),
		Vendor:         ts.VendorInfo(),
		Encrypted:      ts.IsEncrypted(),
		PageTypeCounts: make(map[types.PageType]uint64),
	}
	if fsp := ts.FspHeader(); fsp != nil {
		report.SpaceID = fsp.SpaceID
	}

	vendor := ts.VendorInfo()
	err := ts.ForEachPage(func(n uint64, buf []byte) error {
		fil, err := page.ParseFilHeader(buf)
		if err != nil {
			return err
		}
		report.PageTypeCounts[fil.PageType]++

		res := checksum.Validate(buf, ts.PageSize(), vendor)
		if !res.Valid {
			report.ChecksumFailures = append(report.ChecksumFailures, ChecksumIssue{
				PageNumber: uint32(n),
				Algorithm:  res.Algorithm,
				Stored:     res.Stored,
				Calculated: res.Calculated,
			})
		}
		if !checksum.ValidateLSN(buf, ts.PageSize()) {
			report.TornPages = append(report.TornPages, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	extractor := sdi.NewExtractor(ts)
	if pages, err := extractor.FindPages(); err == nil && len(pages) > 0 {
		report.SdiPages = pages
		if res, err := extractor.Extract(); err == nil {
			report.SdiRecordCount = len(res.Records)
			for _, recErr := range res.Errors {
				report.SdiErrors = append(report.SdiErrors, recErr.Error())
			}
		} else {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("sdi extraction failed: %v", err))
		}
	}
	return report, nil
}

// AnalyzeRedoLog scans every data block of an open redo log, collecting
// CRC failures and a record-type histogram from the block headers.
func AnalyzeRedoLog(lf *redolog.LogFile) (*RedoLogReport, error) {
	cp1, cp2 := lf.Checkpoints()
	report := &RedoLogReport{
		NewFormat:        lf.IsNewFormat(),
		BlockCount:       lf.BlockCount(),
		Header:           lf.FileHeader(),
		Checkpoint1:      cp1,
		Checkpoint2:      cp2,
		LatestCheckpoint: lf.LatestCheckpoint(),
		RecordTypeCounts: make(map[types.RecordType]uint64),
	}
	err := lf.ForEachDataBlock(func(n uint64, block *types.LogBlock) error {
		report.DataBlocks++
		if !block.CrcValid {
			report.CorruptBlocks = append(report.CorruptBlocks, n)
		}
		if block.DataLen == 0 {
			report.EmptyBlocks++
			return nil
		}
		if t, ok := redolog.FirstRecordType(block); ok {
			report.RecordTypeCounts[t]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}
