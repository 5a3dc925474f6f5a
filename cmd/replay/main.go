package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	persistlog "topper.blackblock.rocks/internal/persistence/log"
	"topper.blackblock.rocks/internal/persistence/snapshot"
	"topper.blackblock.rocks/internal/stats/custom"
)

// replay rebuilds the statistic store from the audit trail and compares it to a saved
// snapshot. A clean run means every persisted change is accounted for in the audit log.
func main() {
	var (
		dataDir  = flag.String("data", "./data", "runtime data directory")
		worldID  = flag.String("world", "overworld", "world id")
		snapPath = flag.String("snapshot", "", "snapshot to compare against (default: <world>/custom_statistics.snap.zst)")
	)
	flag.Parse()

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	entries, err := persistlog.ReadAudit(worldDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	fmt.Printf("audit entries=%d\n", len(entries))

	replayed, err := custom.Replay(entries, custom.Options{WorldID: *worldID})
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replayed statistics=%d\n", replayed.Len())

	p := strings.TrimSpace(*snapPath)
	if p == "" {
		p = filepath.Join(worldDir, "custom_statistics.snap.zst")
	}
	saved := custom.NewStore(custom.Options{WorldID: *worldID})
	loaded, skipped, err := saved.Load(snapshot.File{Path: p, WorldID: *worldID})
	if err != nil {
		fmt.Fprintln(os.Stderr, "load snapshot:", err)
		os.Exit(1)
	}
	fmt.Printf("snapshot statistics=%d skipped=%d\n", loaded, skipped)

	diff := custom.Diff(replayed, saved)
	if len(diff) == 0 {
		fmt.Println("OK: audit trail matches snapshot")
		return
	}
	for _, d := range diff {
		fmt.Println("DIFF", d)
	}
	os.Exit(1)
}
