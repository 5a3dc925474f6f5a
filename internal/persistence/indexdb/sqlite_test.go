package indexdb

import (
	"context"
	"path/filepath"
	"testing"

	"topper.blackblock.rocks/internal/catalog"
	"topper.blackblock.rocks/internal/persistence/snapshot"
	"topper.blackblock.rocks/internal/stats/custom"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqAudit}

	s.RecordSave("/tmp/custom.snap.zst", snapshot.StatisticsV1{})
	_ = s.WriteAudit(custom.AuditEntry{Op: "create"})

	st := s.Stats()
	if st.DropSaveTotal != 1 || st.DropAuditTotal != 1 {
		t.Fatalf("drops: save=%d audit=%d", st.DropSaveTotal, st.DropAuditTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_SaveReplacesStatistics(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index", "topper.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx.Close()
	ctx := context.Background()

	store := custom.NewStore(custom.Options{WorldID: "w"})
	_, _ = store.Create("kills", "Kills", "alice")
	_ = store.SetScore("kills", "alice", 3)
	_ = store.SetScore("kills", "bob", 9)
	_ = store.SetScore("kills", "carol", 9)
	idx.RecordSave("a.snap.zst", store.Export())

	_ = store.SetScore("kills", "alice", 12)
	idx.RecordSave("b.snap.zst", store.Export())
	if err := idx.Sync(ctx); err != nil {
		t.Fatal(err)
	}

	top, err := idx.TopScores(ctx, "kills", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 || top[0].User != "alice" || top[0].Score != 12 || top[1].User != "bob" {
		t.Fatalf("top: %#v", top)
	}

	saves, err := idx.Saves(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(saves) != 2 || saves[0].Path != "b.snap.zst" || saves[0].Records != 1 || saves[0].WorldID != "w" {
		t.Fatalf("saves: %#v", saves)
	}
	if st := idx.Stats(); st.FailTotal != 0 {
		t.Fatalf("failed writes: %d", st.FailTotal)
	}
}

func TestSQLiteIndex_UpsertCatalog(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "topper.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx.Close()

	cat := catalog.New()
	cat.Register(catalog.Entry{ID: "stone", Name: "Stone", Kind: catalog.KindBlock}, 0, catalog.CategoryBuilding)
	cat.Register(catalog.Entry{ID: "bread", Name: "Bread", Kind: catalog.KindItem}, 1, catalog.CategoryFood)
	if err := idx.UpsertCatalog(cat); err != nil {
		t.Fatal(err)
	}
	if err := idx.UpsertCatalog(cat); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	var n int
	var cats string
	if err := idx.db.QueryRow(`SELECT COUNT(*) FROM catalog_entries`).Scan(&n); err != nil || n != 2 {
		t.Fatalf("count=%d err=%v", n, err)
	}
	if err := idx.db.QueryRow(`SELECT categories FROM catalog_entries WHERE id='bread'`).Scan(&cats); err != nil || cats != "FOOD" {
		t.Fatalf("categories=%q err=%v", cats, err)
	}
}
