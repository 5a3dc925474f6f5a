package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"topper.blackblock.rocks/internal/stats/custom"
)

const (
	auditDir    = "audit"
	auditPrefix = "statistics-"
	auditSuffix = ".jsonl.zst"
	hourLayout  = "2006-01-02-15"
)

// AuditLogger appends statistic mutations to audit/statistics-<hour>.jsonl.zst under a
// world directory. An entry lands in the file for the UTC hour of its own Time, so a
// sorted file listing replays in mutation order. Every file is a zstd stream; reopening an
// hour appends a new frame.
type AuditLogger struct {
	dir string
	now func() time.Time

	mu   sync.Mutex
	hour string
	f    *os.File
	zw   *zstd.Encoder
	bw   *bufio.Writer
	enc  *json.Encoder
}

func NewAuditLogger(worldDir string) *AuditLogger {
	return &AuditLogger{dir: filepath.Join(worldDir, auditDir), now: time.Now}
}

// WriteAudit stamps e with the current time when it carries none and writes it as one line.
func (l *AuditLogger) WriteAudit(e custom.AuditEntry) error {
	at, err := time.Parse(time.RFC3339Nano, e.Time)
	if err != nil {
		at = l.now().UTC()
		e.Time = at.Format(time.RFC3339Nano)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if hour := at.UTC().Format(hourLayout); hour != l.hour {
		if err := l.openLocked(hour); err != nil {
			return err
		}
	}
	if err := l.enc.Encode(e); err != nil {
		return err
	}
	return l.bw.Flush()
}

func (l *AuditLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked()
}

func (l *AuditLogger) openLocked(hour string) error {
	if err := l.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(auditPath(l.dir, hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	l.f, l.zw, l.hour = f, zw, hour
	l.bw = bufio.NewWriterSize(zw, 32*1024)
	l.enc = json.NewEncoder(l.bw)
	return nil
}

// closeLocked finishes the zstd frame; a frame left open is unreadable.
func (l *AuditLogger) closeLocked() error {
	if l.f == nil {
		return nil
	}
	err := l.bw.Flush()
	if cerr := l.zw.Close(); err == nil {
		err = cerr
	}
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.f, l.zw, l.bw, l.enc, l.hour = nil, nil, nil, nil, ""
	return err
}

func auditPath(dir, hour string) string {
	return filepath.Join(dir, auditPrefix+hour+auditSuffix)
}
