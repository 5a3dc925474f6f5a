package main

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"topper.blackblock.rocks/internal/catalog"
	"topper.blackblock.rocks/internal/persistence/indexdb"
)

func TestQueryRows_Catalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.sqlite")
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	cat := catalog.New()
	cat.Register(catalog.Entry{ID: "stone", Name: "Stone", Kind: catalog.KindBlock}, 0, catalog.CategoryBuilding)
	cat.Register(catalog.Entry{ID: "apple", Name: "Apple", Kind: catalog.KindItem}, 1, catalog.CategoryFood)
	if err := idx.UpsertCatalog(cat); err != nil {
		t.Fatal(err)
	}
	_ = idx.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	rows, err := queryRows(context.Background(), db, `SELECT idx,id,name FROM catalog_entries ORDER BY idx LIMIT ?`, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 2 || rows[0]["id"] != "stone" || rows[1]["name"] != "Apple" {
		t.Fatalf("rows: %#v", rows)
	}
}
