package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"topper.blackblock.rocks/internal/hub"
	"topper.blackblock.rocks/internal/persistence/archive"
	"topper.blackblock.rocks/internal/persistence/boltstore"
	persistlog "topper.blackblock.rocks/internal/persistence/log"
	"topper.blackblock.rocks/internal/persistence/snapshot"
	"topper.blackblock.rocks/internal/stats/custom"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "dump":
			dumpCmd(os.Args[2:])
			return
		case "audit":
			auditCmd(os.Args[2:])
			return
		case "archives":
			archivesCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "save":
			saveCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func fail(code int, args ...any) {
	fmt.Fprintln(os.Stderr, args...)
	os.Exit(code)
}

func worldDir(dataDir, worldID string) string {
	if strings.TrimSpace(worldID) == "" {
		fail(2, "missing -world")
	}
	return filepath.Join(dataDir, "worlds", worldID)
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	entries, err := os.ReadDir(filepath.Join(*dataDir, "worlds"))
	if err != nil {
		fail(1, "read:", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			fmt.Println(e.Name())
		}
	}
}

// dumpCmd decodes a persisted store and prints its statistics as JSON.
func dumpCmd(args []string) {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	path := fs.String("path", "", "snapshot (.snap.zst) or bolt (.db) file; defaults to the world's file backend")
	_ = fs.Parse(args)

	p := strings.TrimSpace(*path)
	if p == "" {
		p = filepath.Join(worldDir(*dataDir, *worldID), "custom_statistics.snap.zst")
	}

	var src custom.Persister
	if strings.HasSuffix(p, ".db") {
		s, err := boltstore.Open(p, *worldID)
		if err != nil {
			fail(1, "open:", err)
		}
		defer s.Close()
		src = s
	} else {
		src = snapshot.File{Path: p, WorldID: *worldID}
	}

	st := custom.NewStore(custom.Options{WorldID: *worldID})
	loaded, skipped, err := st.Load(src)
	if err != nil {
		fail(1, "load:", err)
	}
	fmt.Fprintf(os.Stderr, "loaded=%d skipped=%d\n", loaded, skipped)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(hub.StatisticViews(st.List()))
}

func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	key := fs.String("key", "", "only entries for this statistic key")
	actor := fs.String("actor", "", "only entries by this user")
	asJSON := fs.Bool("json", false, "print raw JSON lines")
	_ = fs.Parse(args)

	entries, err := persistlog.ReadAudit(worldDir(*dataDir, *worldID))
	if err != nil {
		fail(1, "read audit:", err)
	}
	for _, e := range entries {
		if *key != "" && e.Key != *key {
			continue
		}
		if *actor != "" && e.Actor != *actor {
			continue
		}
		if *asJSON {
			b, _ := json.Marshal(e)
			fmt.Println(string(b))
			continue
		}
		when := e.Time
		if t, err := time.Parse(time.RFC3339Nano, e.Time); err == nil {
			when = humanize.Time(t)
		}
		fmt.Printf("%-16s %-18s %-12s %s %v\n", when, e.Op, e.Actor, e.Key, e.Details)
	}
}

func archivesCmd(args []string) {
	fs := flag.NewFlagSet("archives", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	dirs, err := filepath.Glob(filepath.Join(*dataDir, "archives", "*"))
	if err != nil {
		fail(1, "glob:", err)
	}
	for _, d := range dirs {
		m, err := archive.ReadMeta(d)
		if err != nil {
			fmt.Printf("%s\t(no meta: %v)\n", filepath.Base(d), err)
			continue
		}
		fmt.Printf("%s\tworld=%s records=%d size=%s copy=%s\n", m.Day, m.WorldID, m.Records, m.Size, m.Copy)
	}
}
