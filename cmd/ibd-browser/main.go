package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	log "github.com/sirupsen/logrus"

	"github.com/yamaru/innodb-ibd-tool/internal/checksum"
	"github.com/yamaru/innodb-ibd-tool/internal/config"
	"github.com/yamaru/innodb-ibd-tool/internal/crypt"
	"github.com/yamaru/innodb-ibd-tool/internal/keyring"
	"github.com/yamaru/innodb-ibd-tool/internal/page"
	"github.com/yamaru/innodb-ibd-tool/internal/tablespace"
	"github.com/yamaru/innodb-ibd-tool/internal/types"
)

var (
	filename    = flag.String("file", "", "Tablespace file to browse")
	keyringPath = flag.String("keyring", "", "Keyring file for decryption")
	configPath  = flag.String("config", "", "YAML config file")
)

// browserApp holds the TUI state: the page list on the left and the
// detail pane on the right.
type browserApp struct {
	app     *tview.Application
	list    *tview.List
	details *tview.TextView
	footer  *tview.TextView
	ts      *tablespace.Tablespace
}

func main() {
	flag.Parse()
	if *filename == "" {
		fmt.Printf("Usage: %s -file <tablespace_file>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
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

	ts, err := tablespace.Open(*filename)
	if err != nil {
		log.Fatalf("opening tablespace: %v", err)
	}
	defer ts.Close()

	if cfg.KeyringPath != "" && ts.EncryptionInfo() != nil {
		kr, err := keyring.Load(cfg.KeyringPath)
		if err != nil {
			log.Fatalf("loading keyring: %v", err)
		}
		ctx, err := crypt.UnwrapTablespaceKey(ts.EncryptionInfo(), kr)
		if err != nil {
			log.Fatalf("unwrapping tablespace key: %v", err)
		}
		ts.SetDecryptionContext(ctx)
	}

	b := &browserApp{
		app:     tview.NewApplication(),
		list:    tview.NewList().ShowSecondaryText(false),
		details: tview.NewTextView().SetDynamicColors(true).SetWrap(false),
		footer:  tview.NewTextView(),
		ts:      ts,
	}
	b.run()
}

func (b *browserApp) run() {
	b.list.SetBorder(true).SetTitle(fmt.Sprintf(" Pages (%d) ", b.ts.PageCount()))
	b.details.SetBorder(true).SetTitle(" Page Detail ")
	b.footer.SetText(" q: quit   enter/arrows: select page ")

	vendor := b.ts.VendorInfo()
	for n := uint64(0); n < b.ts.PageCount(); n++ {
		label := fmt.Sprintf("%6d  %s", n, b.pageTypeName(n, vendor))
		b.list.AddItem(label, "", 0, nil)
	}
	b.list.SetChangedFunc(func(index int, _ string, _ string, _ rune) {
		b.showPage(uint64(index))
	})
	if b.ts.PageCount() > 0 {
		b.showPage(0)
	}

	flex := tview.NewFlex().
		AddItem(b.list, 0, 1, true).
		AddItem(b.details, 0, 2, false)
	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(flex, 0, 1, true).
		AddItem(b.footer, 1, 0, false)

	b.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Rune() == 'q' {
			b.app.Stop()
			return nil
		}
		return event
	})

	if err := b.app.SetRoot(root, true).Run(); err != nil {
		log.Fatalf("tui error: %v", err)
	}
}

func (b *browserApp) pageTypeName(n uint64, vendor types.Vendor) string {
	buf, err := b.ts.ReadPage(n)
	if err != nil {
		return "read error"
	}
	fil, err := page.ParseFilHeader(buf)
	if err != nil {
		return "bad header"
	}
	return types.Describe(uint16(fil.PageType), vendor).Name
}

func (b *browserApp) showPage(n uint64) {
	buf, err := b.ts.ReadPage(n)
	if err != nil {
		b.details.SetText(fmt.Sprintf("[red]read error: %v", err))
		return
	}
	fil, err := page.ParseFilHeader(buf)
	if err != nil {
		b.details.SetText(fmt.Sprintf("[red]header error: %v", err))
		return
	}
	vendor := b.ts.VendorInfo()
	info := types.Describe(uint16(fil.PageType), vendor)
	res := checksum.Validate(buf, b.ts.PageSize(), vendor)
	lsnOK := checksum.ValidateLSN(buf, b.ts.PageSize())

	var sb strings.Builder
	fmt.Fprintf(&sb, "[yellow]Page %d[-]\n\n", n)
	fmt.Fprintf(&sb, "Type:        %s (%d)\n", info.Name, info.Code)
	fmt.Fprintf(&sb, "             %s\n", info.Description)
	fmt.Fprintf(&sb, "Space ID:    %d\n", fil.SpaceID)
	fmt.Fprintf(&sb, "LSN:         %d\n", fil.LSN)
	fmt.Fprintf(&sb, "Prev/Next:   %s / %s\n", pageRef(fil.PrevPage), pageRef(fil.NextPage))
	fmt.Fprintf(&sb, "Checksum:    %s stored=0x%08x calc=0x%08x valid=%t\n",
		res.Algorithm, res.Stored, res.Calculated, res.Valid)
	fmt.Fprintf(&sb, "LSN torn:    %t\n\n", !lsnOK)

	dump := buf
	if len(dump) > 128 {
		dump = dump[:128]
	}
	fmt.Fprintf(&sb, "[green]First %d bytes:[-]\n%s", len(dump), hex.Dump(dump))
	b.details.SetText(sb.String())
}

func pageRef(n uint32) string {
	if n == types.FilNull {
		return "-"
	}
	return fmt.Sprintf("%d", n)
}
