package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"topper.blackblock.rocks/internal/catalog"
	"topper.blackblock.rocks/internal/persistence/snapshot"
	"topper.blackblock.rocks/internal/stats/custom"
)

// SQLiteIndex is a queryable read model of the catalog and of every statistics save.
// Writes are queued to a single goroutine; the snapshot stays the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropSave  atomic.Uint64
	dropAudit atomic.Uint64
	failTotal atomic.Uint64
}

type reqKind int

const (
	reqSave reqKind = iota + 1
	reqAudit
	reqSync
)

type req struct {
	kind reqKind

	save  saveRow
	audit custom.AuditEntry
	done  chan struct{}
}

type saveRow struct {
	Path    string
	WorldID string
	SavedAt string
	Records []json.RawMessage
}

type QueueStats struct {
	QueueDepth     int
	QueueCapacity  int
	DropSaveTotal  uint64
	DropAuditTotal uint64
	FailTotal      uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalog_entries (
			idx INTEGER PRIMARY KEY,
			id TEXT NOT NULL,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			categories TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_catalog_entries_id ON catalog_entries(id);`,
		`CREATE TABLE IF NOT EXISTS statistics (
			key TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			owner TEXT NOT NULL,
			display_entry TEXT NOT NULL,
			save_id INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_statistics_owner ON statistics(owner);`,
		`CREATE TABLE IF NOT EXISTS statistic_maintainers (
			key TEXT NOT NULL,
			user TEXT NOT NULL,
			PRIMARY KEY (key, user)
		);`,
		`CREATE TABLE IF NOT EXISTS statistic_scores (
			key TEXT NOT NULL,
			user TEXT NOT NULL,
			score INTEGER NOT NULL,
			PRIMARY KEY (key, user)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_statistic_scores_key_score ON statistic_scores(key, score);`,
		`CREATE TABLE IF NOT EXISTS saves (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT NOT NULL,
			world_id TEXT NOT NULL,
			records INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			saved_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS audits (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			time TEXT NOT NULL,
			op TEXT NOT NULL,
			actor TEXT NOT NULL,
			key TEXT NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_key ON audits(key, seq);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Sync blocks until every request queued before it has been applied.
func (s *SQLiteIndex) Sync(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqSync, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) Stats() QueueStats {
	if s == nil {
		return QueueStats{}
	}
	return QueueStats{
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
		DropSaveTotal:  s.dropSave.Load(),
		DropAuditTotal: s.dropAudit.Load(),
		FailTotal:      s.failTotal.Load(),
	}
}

// RecordSave queues a statistics document that was just written to path.
func (s *SQLiteIndex) RecordSave(path string, doc snapshot.StatisticsV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := saveRow{
		Path:    path,
		WorldID: doc.Header.WorldID,
		SavedAt: doc.Header.SavedAt,
		Records: doc.Records,
	}
	if r.SavedAt == "" {
		r.SavedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	select {
	case s.ch <- req{kind: reqSave, save: r}:
	default:
		// Drop if the indexer falls behind; the next save replaces the statistics tables anyway.
		s.dropSave.Add(1)
	}
}

func (s *SQLiteIndex) WriteAudit(e custom.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAudit, audit: e}:
	default:
		s.dropAudit.Add(1)
	}
	return nil
}

// UpsertCatalog replaces the catalog tables with the registered entries.
func (s *SQLiteIndex) UpsertCatalog(cat *catalog.Catalog) error {
	if s == nil || cat == nil {
		return nil
	}
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('catalog_digest',?)`, cat.Digest); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM catalog_entries`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalog_entries(idx,id,name,kind,categories) VALUES(?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, e := range cat.Index.Flatten() {
		names := make([]string, 0, len(e.Categories))
		for _, c := range e.Categories {
			names = append(names, c.String())
		}
		if _, err := stmt.Exec(e.Index, e.ID, e.Name, string(e.Kind), strings.Join(names, ",")); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	for r := range s.ch {
		var err error
		switch r.kind {
		case reqSave:
			err = s.applySave(r.save)
		case reqAudit:
			err = s.applyAudit(r.audit)
		case reqSync:
			close(r.done)
		}
		if err != nil {
			s.failTotal.Add(1)
		}
	}
}

func (s *SQLiteIndex) applySave(sv saveRow) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var recs []snapshot.StatisticV1
	skipped := 0
	for _, raw := range sv.Records {
		var rec snapshot.StatisticV1
		if err := json.Unmarshal(raw, &rec); err != nil || rec.Key == "" {
			skipped++
			continue
		}
		recs = append(recs, rec)
	}

	res, err := tx.Exec(`INSERT INTO saves(path,world_id,records,skipped,saved_at) VALUES(?,?,?,?,?)`,
		sv.Path, sv.WorldID, len(recs), skipped, sv.SavedAt)
	if err != nil {
		return err
	}
	saveID, _ := res.LastInsertId()

	for _, q := range []string{`DELETE FROM statistics`, `DELETE FROM statistic_maintainers`, `DELETE FROM statistic_scores`} {
		if _, err := tx.Exec(q); err != nil {
			return err
		}
	}
	for _, rec := range recs {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO statistics(key,display_name,owner,display_entry,save_id) VALUES(?,?,?,?,?)`,
			rec.Key, rec.DisplayName, rec.Owner, rec.DisplayEntry, saveID); err != nil {
			return err
		}
		for _, m := range rec.Maintainers {
			if _, err := tx.Exec(`INSERT OR REPLACE INTO statistic_maintainers(key,user) VALUES(?,?)`, rec.Key, m); err != nil {
				return err
			}
		}
		for u, v := range rec.Scores {
			if _, err := tx.Exec(`INSERT OR REPLACE INTO statistic_scores(key,user,score) VALUES(?,?,?)`, rec.Key, u, v); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) applyAudit(e custom.AuditEntry) error {
	raw, _ := json.Marshal(e)
	_, err := s.db.Exec(`INSERT INTO audits(time,op,actor,key,raw_json) VALUES(?,?,?,?,?)`, e.Time, e.Op, e.Actor, e.Key, string(raw))
	return err
}

type ScoreRow struct {
	User  string `json:"user"`
	Score int    `json:"score"`
}

// TopScores returns the highest scores recorded for key at the last indexed save.
func (s *SQLiteIndex) TopScores(ctx context.Context, key string, limit int) ([]ScoreRow, error) {
	return TopScores(ctx, s.db, key, limit)
}

func TopScores(ctx context.Context, db *sql.DB, key string, limit int) ([]ScoreRow, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.QueryContext(ctx, `SELECT user,score FROM statistic_scores WHERE key=? ORDER BY score DESC, user ASC LIMIT ?`, key, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ScoreRow
	for rows.Next() {
		var r ScoreRow
		if err := rows.Scan(&r.User, &r.Score); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type SaveRow struct {
	ID      int64  `json:"id"`
	Path    string `json:"path"`
	WorldID string `json:"world_id"`
	Records int    `json:"records"`
	Skipped int    `json:"skipped"`
	SavedAt string `json:"saved_at"`
}

func (s *SQLiteIndex) Saves(ctx context.Context, limit int) ([]SaveRow, error) {
	return Saves(ctx, s.db, limit)
}

func Saves(ctx context.Context, db *sql.DB, limit int) ([]SaveRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `SELECT id,path,world_id,records,skipped,saved_at FROM saves ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SaveRow
	for rows.Next() {
		var r SaveRow
		if err := rows.Scan(&r.ID, &r.Path, &r.WorldID, &r.Records, &r.Skipped, &r.SavedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
