// Package archive keeps one dated copy of the statistics store per UTC day.
package archive

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"topper.blackblock.rocks/internal/persistence/snapshot"
)

// Source is a persisted store that can copy itself.
type Source interface {
	Location() string
	CopyTo(dst string) error
}

type Meta struct {
	Day       string `json:"day"`
	WorldID   string `json:"world_id"`
	Records   int    `json:"records"`
	Copy      string `json:"copy"`
	Size      string `json:"size,omitempty"`
	CreatedAt string `json:"created_at"`
}

func Dir(dataDir string, day time.Time) string {
	return filepath.Join(dataDir, "archives", day.UTC().Format("2006-01-02"))
}

// Daily copies src into dataDir/archives/<day>/ unless that day already has a copy.
// archived reports whether a new copy was made.
func Daily(dataDir string, now time.Time, doc snapshot.StatisticsV1, src Source) (archivedPath string, archived bool, err error) {
	dir := Dir(dataDir, now)
	dst := filepath.Join(dir, filepath.Base(src.Location()))
	if _, err := os.Stat(dst); err == nil {
		return dst, false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", false, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, err
	}
	if err := src.CopyTo(dst); err != nil {
		_ = os.Remove(dst)
		return "", false, err
	}

	meta := Meta{
		Day:       now.UTC().Format("2006-01-02"),
		WorldID:   doc.Header.WorldID,
		Records:   len(doc.Records),
		Copy:      filepath.Base(dst),
		CreatedAt: now.UTC().Format(time.RFC3339Nano),
	}
	if st, err := os.Stat(dst); err == nil {
		meta.Size = humanize.Bytes(uint64(st.Size()))
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(dir, "meta.json"), b, 0o644)
	}
	return dst, true, nil
}

func ReadMeta(dir string) (Meta, error) {
	var m Meta
	b, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(b, &m)
	return m, err
}
