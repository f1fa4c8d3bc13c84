package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"

	"github.com/yamaru/innodb-ibd-tool/internal/analyzer"
	"github.com/yamaru/innodb-ibd-tool/internal/config"
	"github.com/yamaru/innodb-ibd-tool/internal/crypt"
	"github.com/yamaru/innodb-ibd-tool/internal/keyring"
	"github.com/yamaru/innodb-ibd-tool/internal/redolog"
	"github.com/yamaru/innodb-ibd-tool/internal/sdi"
	"github.com/yamaru/innodb-ibd-tool/internal/tablespace"
	"github.com/yamaru/innodb-ibd-tool/internal/types"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var (
		inputFile    = flag.String("file", "", "Path to a tablespace (.ibd, ibdata1) or redo log file")
		redoMode     = flag.Bool("redo", false, "Treat the input as a redo log file")
		keyringPath  = flag.String("keyring", "", "Path to a legacy keyring_file for decryption")
		configPath   = flag.String("config", "", "Path to a YAML config file")
		outputFormat = flag.String("format", "", "Output format: text, json")
		dumpSdi      = flag.Bool("sdi", false, "Extract and print SDI records as JSON")
		pageSize     = flag.Uint("page-size", 0, "Force a page size instead of inferring it")
		verbose      = flag.Bool("verbose", false, "Enable verbose output")
		showVersion  = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("InnoDB Tablespace Parser\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
		cfg = loaded
	}
	if *keyringPath != "" {
		cfg.KeyringPath = *keyringPath
	}
	if *pageSize != 0 {
		cfg.PageSize = uint32(*pageSize)
	}
	if *outputFormat != "" {
		cfg.ExportFormat = *outputFormat
	}
	if *verbose || cfg.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	if *inputFile == "" {
		fmt.Fprintf(os.Stderr, "Error: --file is required\n")
		flag.Usage()
		os.Exit(1)
	}

	if *redoMode || redolog.IsNewFormatName(*inputFile) {
		if err := runRedo(*inputFile, cfg); err != nil {
			log.Fatalf("redo log analysis failed: %v", err)
		}
		return
	}
	if err := runTablespace(*inputFile, cfg, *dumpSdi); err != nil {
		log.Fatalf("tablespace analysis failed: %v", err)
	}
}

func runTablespace(path string, cfg *config.Config, dumpSdi bool) error {
	var (
		ts  *tablespace.Tablespace
		err error
	)
	if cfg.PageSize != 0 {
		ts, err = tablespace.OpenWithPageSize(path, cfg.PageSize)
	} else {
		ts, err = tablespace.Open(path)
	}
	if err != nil {
		return err
	}
	defer ts.Close()

	log.Debugf("opened %s: page_size=%d pages=%d vendor=%s",
		path, ts.PageSize(), ts.PageCount(), ts.VendorInfo())

	if cfg.KeyringPath != "" && ts.EncryptionInfo() != nil {
		kr, err := keyring.Load(cfg.KeyringPath)
		if err != nil {
			return err
		}
		ctx, err := crypt.UnwrapTablespaceKey(ts.EncryptionInfo(), kr)
		if err != nil {
			return err
		}
		ts.SetDecryptionContext(ctx)
		log.Debug("tablespace key unwrapped, transparent decryption enabled")
	}

	report, err := analyzer.AnalyzeTablespace(ts)
	if err != nil {
		return err
	}

	if cfg.ExportFormat == "json" {
		return printJSON(report)
	}
	printTablespaceReport(report)

	if dumpSdi {
		res, err := sdiRecords(ts)
		if err != nil {
			return err
		}
		for _, rec := range res {
			fmt.Printf("--- sdi %s id=%d ---\n%s\n", rec.Type, rec.ID, rec.Data)
		}
	}
	return nil
}

func sdiRecords(ts *tablespace.Tablespace) ([]types.SdiRecord, error) {
	res, err := sdi.NewExtractor(ts).Extract()
	if err != nil {
		return nil, err
	}
	for _, recErr := range res.Errors {
		log.Warnf("sdi record skipped: %v", recErr)
	}
	return res.Records, nil
}

func runRedo(path string, cfg *config.Config) error {
	lf, err := redolog.Open(path)
	if err != nil {
		return err
	}
	defer lf.Close()

	report, err := analyzer.AnalyzeRedoLog(lf)
	if err != nil {
		return err
	}
	report.Path = path
	if cfg.ExportFormat == "json" {
		return printJSON(report)
	}
	printRedoReport(report)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTablespaceReport(r *analyzer.TablespaceReport) {
	fmt.Printf("Tablespace: %s\n", r.Path)
	fmt.Printf("Vendor: %s  Space ID: %d  Page size: %d  Pages: %d  Encrypted: %t\n\n",
		r.Vendor, r.SpaceID, r.PageSize, r.PageCount, r.Encrypted)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Page Type", "Count"})
	codes := make([]int, 0, len(r.PageTypeCounts))
	for t := range r.PageTypeCounts {
		codes = append(codes, int(t))
	}
	sort.Ints(codes)
	for _, c := range codes {
		info := types.Describe(uint16(c), r.Vendor)
		table.Append([]string{info.Name, fmt.Sprintf("%d", r.PageTypeCounts[types.PageType(c)])})
	}
	table.Render()

	if len(r.ChecksumFailures) > 0 {
		fmt.Printf("\nChecksum failures: %d\n", len(r.ChecksumFailures))
		bad := tablewriter.NewWriter(os.Stdout)
		bad.SetHeader([]string{"Page", "Algorithm", "Stored", "Calculated"})
		for _, f := range r.ChecksumFailures {
			bad.Append([]string{
				fmt.Sprintf("%d", f.PageNumber),
				f.Algorithm.String(),
				fmt.Sprintf("0x%08x", f.Stored),
				fmt.Sprintf("0x%08x", f.Calculated),
			})
		}
		bad.Render()
	} else {
		fmt.Printf("\nAll page checksums valid\n")
	}

	if len(r.TornPages) > 0 {
		fmt.Printf("Torn pages (LSN mismatch): %v\n", r.TornPages)
	}
	if len(r.SdiPages) > 0 {
		fmt.Printf("SDI pages: %v  records: %d\n", r.SdiPages, r.SdiRecordCount)
	}
	for _, e := range r.SdiErrors {
		fmt.Printf("SDI error: %s\n", e)
	}
	for _, w := range r.Warnings {
		fmt.Printf("Warning: %s\n", w)
	}
}

func printRedoReport(r *analyzer.RedoLogReport) {
	fmt.Printf("Redo log: %s\n", r.Path)
	format := "classic"
	if r.NewFormat {
		format = "#ib_redo"
	}
	creator := r.Header.Creator
	if creator == "" {
		creator = "(empty)"
	}
	fmt.Printf("Format: %s  Blocks: %d  Data blocks: %d  Creator: %s\n",
		format, r.BlockCount, r.DataBlocks, creator)
	fmt.Printf("Start LSN: %d\n", r.Header.StartLSN)
	fmt.Printf("Checkpoint 1: no=%d lsn=%d\n", r.Checkpoint1.CheckpointNo, r.Checkpoint1.CheckpointLSN)
	fmt.Printf("Checkpoint 2: no=%d lsn=%d\n", r.Checkpoint2.CheckpointNo, r.Checkpoint2.CheckpointLSN)
	fmt.Printf("Latest checkpoint: no=%d lsn=%d\n",
		r.LatestCheckpoint.CheckpointNo, r.LatestCheckpoint.CheckpointLSN)

	if len(r.RecordTypeCounts) > 0 {
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Record Type", "Blocks"})
		names := make([]string, 0, len(r.RecordTypeCounts))
		byName := make(map[string]uint64)
		for t, n := range r.RecordTypeCounts {
			names = append(names, t.String())
			byName[t.String()] += n
		}
		sort.Strings(names)
		seen := map[string]bool{}
		for _, name := range names {
			if seen[name] {
				continue
			}
			seen[name] = true
			table.Append([]string{name, fmt.Sprintf("%d", byName[name])})
		}
		table.Render()
	}

	if len(r.CorruptBlocks) > 0 {
		fmt.Printf("Corrupt blocks (CRC mismatch): %s\n", joinUints(r.CorruptBlocks))
	} else {
		fmt.Printf("All block CRCs valid\n")
	}
}

func joinUints(ns []uint64) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, ", ")
}
