package hub

import (
	"log"

	"topper.blackblock.rocks/internal/persistence/snapshot"
	"topper.blackblock.rocks/internal/stats/custom"
)

// WriteSnapshots drains in until it is closed, writing each document through p. A failed
// write marks store dirty so a later flush retries. after, if set, runs for each written doc.
func WriteSnapshots(in <-chan snapshot.StatisticsV1, p custom.Persister, store *custom.Store, logger *log.Logger, after func(snapshot.StatisticsV1)) {
	for doc := range in {
		if err := p.WriteSnapshot(doc); err != nil {
			store.MarkDirty()
			if logger != nil {
				logger.Printf("snapshot write: %v", err)
			}
			continue
		}
		if logger != nil {
			logger.Printf("snapshot saved records=%d", len(doc.Records))
		}
		if after != nil {
			after(doc)
		}
	}
}
