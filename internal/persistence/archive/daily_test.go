package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"topper.blackblock.rocks/internal/persistence/boltstore"
	"topper.blackblock.rocks/internal/persistence/snapshot"
)

func TestDaily_CopiesOncePerDay(t *testing.T) {
	dir := t.TempDir()
	src := snapshot.File{Path: filepath.Join(dir, "custom_statistics.snap.zst"), WorldID: "w1"}
	rec, _ := json.Marshal(snapshot.StatisticV1{Key: "kills", Owner: "alice"})
	doc := snapshot.StatisticsV1{Header: snapshot.Header{WorldID: "w1"}, Records: []json.RawMessage{rec}}
	if err := src.WriteSnapshot(doc); err != nil {
		t.Fatalf("write: %v", err)
	}

	day := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	path, ok, err := Daily(dir, day, doc, src)
	if err != nil || !ok {
		t.Fatalf("archive: ok=%v err=%v", ok, err)
	}
	if filepath.Dir(path) != filepath.Join(dir, "archives", "2026-03-04") {
		t.Fatalf("path=%s", path)
	}
	got, err := snapshot.ReadSnapshot(path)
	if err != nil || len(got.Records) != 1 {
		t.Fatalf("archived copy unreadable: %v", err)
	}
	meta, err := ReadMeta(filepath.Dir(path))
	if err != nil || meta.Records != 1 || meta.WorldID != "w1" || meta.Size == "" {
		t.Fatalf("meta: %#v %v", meta, err)
	}

	if _, ok, err := Daily(dir, day.Add(5*time.Hour), doc, src); err != nil || ok {
		t.Fatalf("second copy same day: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := Daily(dir, day.Add(24*time.Hour), doc, src); !ok {
		t.Fatalf("next day should archive")
	}
}

func TestDaily_BoltSource(t *testing.T) {
	dir := t.TempDir()
	s, err := boltstore.Open(filepath.Join(dir, "custom_statistics.db"), "w1")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	path, ok, err := Daily(dir, time.Now(), snapshot.StatisticsV1{}, s)
	if err != nil || !ok {
		t.Fatalf("archive: ok=%v err=%v", ok, err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("copy missing: %v", err)
	}
}
