package snapshot

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	SavedAt string `json:"saved_at,omitempty"`
	Records int    `json:"records"`
}

// StatisticsV1 is the whole-collection document for custom statistics.
// Records stay raw so a single malformed record can be skipped on load.
type StatisticsV1 struct {
	Header  Header            `json:"header"`
	Records []json.RawMessage `json:"records"`
}

type StatisticV1 struct {
	Key          string         `json:"key"`
	DisplayName  string         `json:"displayName"`
	Owner        string         `json:"owner"`
	Maintainers  []string       `json:"maintainers"`
	Scores       map[string]int `json:"scores"`
	DisplayEntry string         `json:"displayEntry,omitempty"`
}

// WriteSnapshot writes a zstd stream holding one JSON header line followed by the JSON
// records array. The file is replaced atomically.
func WriteSnapshot(path string, snap StatisticsV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if snap.Header.Version == 0 {
		snap.Header.Version = Version
	}
	if snap.Header.SavedAt == "" {
		snap.Header.SavedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	snap.Header.Records = len(snap.Records)
	if snap.Records == nil {
		snap.Records = []json.RawMessage{}
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := writeStream(f, snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeStream(w io.Writer, snap StatisticsV1) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := json.NewEncoder(bw).Encode(snap.Records); err != nil {
		_ = enc.Close()
		return fmt.Errorf("encode records: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (StatisticsV1, error) {
	var snap StatisticsV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &snap.Header); err != nil {
		return snap, fmt.Errorf("decode header: %w", err)
	}
	if err := json.NewDecoder(br).Decode(&snap.Records); err != nil {
		return snap, fmt.Errorf("decode records: %w", err)
	}
	return snap, nil
}

// File is a snapshot persister backed by a single file.
type File struct {
	Path    string
	WorldID string
}

// ReadSnapshot returns an empty document when the file does not exist yet.
func (f File) ReadSnapshot() (StatisticsV1, error) {
	snap, err := ReadSnapshot(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return StatisticsV1{Header: Header{Version: Version, WorldID: f.WorldID}}, nil
	}
	return snap, err
}

func (f File) WriteSnapshot(snap StatisticsV1) error {
	if snap.Header.WorldID == "" {
		snap.Header.WorldID = f.WorldID
	}
	return WriteSnapshot(f.Path, snap)
}

func (f File) Location() string { return f.Path }

// CopyTo copies the snapshot file as-is to dst.
func (f File) CopyTo(dst string) error {
	in, err := os.Open(f.Path)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
