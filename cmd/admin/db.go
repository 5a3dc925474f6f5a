package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"topper.blackblock.rocks/internal/persistence/indexdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	key := fs.String("key", "", "statistic key (top, audits)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "saves"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(worldDir(*dataDir, *worldID), "index.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fail(1, "open:", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out any
	switch q {
	case "saves":
		out, err = indexdb.Saves(ctx, db, *limit)
	case "top":
		if *key == "" {
			fail(2, "top needs -key")
		}
		out, err = indexdb.TopScores(ctx, db, *key, *limit)
	case "statistics":
		out, err = queryRows(ctx, db, `SELECT key,display_name,owner,display_entry FROM statistics ORDER BY key LIMIT ?`, *limit)
	case "catalog":
		out, err = queryRows(ctx, db, `SELECT idx,id,name,kind,categories FROM catalog_entries ORDER BY idx LIMIT ?`, *limit)
	case "audits":
		if *key != "" {
			out, err = queryRows(ctx, db, `SELECT seq,time,op,actor,key FROM audits WHERE key=? ORDER BY seq DESC LIMIT ?`, *key, *limit)
		} else {
			out, err = queryRows(ctx, db, `SELECT seq,time,op,actor,key FROM audits ORDER BY seq DESC LIMIT ?`, *limit)
		}
	default:
		fail(2, "unknown query:", q, "(saves|top|statistics|catalog|audits)")
	}
	if err != nil {
		fail(1, "query:", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}

// queryRows returns each row as a column-name map.
func queryRows(ctx context.Context, db *sql.DB, query string, args ...any) ([]map[string]any, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		m := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				m[c] = string(b)
			} else {
				m[c] = vals[i]
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
