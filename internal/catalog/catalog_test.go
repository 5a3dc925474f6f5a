package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIndexFlattenOrderAndCache(t *testing.T) {
	x := NewIndex()
	x.Register(Entry{ID: "c"}, 30)
	x.Register(Entry{ID: "a"}, 10)
	x.Register(Entry{ID: "b"}, 20)

	flat := x.Flatten()
	if len(flat) != 3 || flat[0].ID != "a" || flat[1].ID != "b" || flat[2].ID != "c" {
		t.Fatalf("unexpected order: %#v", flat)
	}
	again := x.Flatten()
	if &again[0] != &flat[0] {
		t.Fatalf("expected cached slice to be reused")
	}

	v := x.Version()
	x.Register(Entry{ID: "b2"}, 20)
	if x.Version() == v {
		t.Fatalf("version not bumped")
	}
	flat = x.Flatten()
	if len(flat) != 3 || flat[1].ID != "b2" {
		t.Fatalf("last write should win at position 20: %#v", flat)
	}
	if flat[1].Index != 20 {
		t.Fatalf("index=%d want 20", flat[1].Index)
	}
}

func TestFilterSubsetOf(t *testing.T) {
	c := New()
	c.Register(Entry{ID: "stone", Kind: KindBlock}, 2, CategoryBuilding)
	c.Register(Entry{ID: "bread"}, 1, CategoryFood)
	c.Register(Entry{ID: "cake", Kind: KindBlock}, 3, CategoryFood, CategoryFunctional)
	c.Register(Entry{ID: "stick"}, 4)

	food := c.Filter.SubsetOf(CategoryFood)
	if len(food) != 2 || food[0].ID != "bread" || food[1].ID != "cake" {
		t.Fatalf("food subset: %#v", food)
	}
	if got := c.Filter.SubsetOf(CategoryMobHeads); len(got) != 0 {
		t.Fatalf("expected empty subset, got %#v", got)
	}
	all := c.Filter.SubsetOf(CategoryAll)
	if len(all) != 4 || all[3].ID != "stick" {
		t.Fatalf("all subset: %#v", all)
	}
	if c.Filter.Has("stick", CategoryOther) {
		t.Fatalf("untagged entry must not be inferred into a category")
	}
}

func TestParseCategory(t *testing.T) {
	for _, c := range Categories() {
		got, err := ParseCategory(c.String())
		if err != nil || got != c {
			t.Fatalf("round trip %v: got %v err %v", c, got, err)
		}
	}
	if _, err := ParseCategory("WEAPONS"); err == nil {
		t.Fatalf("expected error for unknown category")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	items := `[
	  {"index": 2, "id": "blackblock:oak_table", "name": "Oak Table", "kind": "block", "categories": ["FUNCTIONAL_BLOCKS"]},
	  {"index": 1, "id": "blackblock:marble", "name": "Marble", "kind": "BLOCK", "categories": ["BUILDING_BLOCKS"]},
	  {"index": 3, "id": "blackblock:top_hat", "name": "Top Hat", "categories": ["COSMETICS"]}
	]`
	stats := `[
	  {"id": "blackblock:votes", "name": "Votes Cast", "icon": "minecraft:paper"},
	  {"id": "blackblock:walked", "name": "Distance Walked", "icon": "minecraft:leather_boots", "format": "distance"}
	]`
	if err := os.WriteFile(filepath.Join(dir, "catalog.json"), []byte(items), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "stat_items.json"), []byte(stats), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	flat := c.Index.Flatten()
	if len(flat) != 3 || flat[0].ID != "blackblock:marble" || !flat[0].IsBlock() {
		t.Fatalf("unexpected flatten: %#v", flat)
	}
	if flat[2].Kind != KindItem {
		t.Fatalf("default kind=%q want ITEM", flat[2].Kind)
	}
	if c.Digest == "" || c.Stats.Digest == "" {
		t.Fatalf("expected digests")
	}
	if len(c.Stats.Defs) != 2 || c.Stats.Defs[0].ID != "blackblock:votes" {
		t.Fatalf("stats not sorted by id: %#v", c.Stats.Defs)
	}
	if got := c.Filter.SubsetOf(CategoryCosmetics); len(got) != 1 || got[0].Name != "Top Hat" {
		t.Fatalf("cosmetics: %#v", got)
	}
}

func TestLoadRejectsUnknownCategory(t *testing.T) {
	dir := t.TempDir()
	items := `[{"index": 1, "id": "x", "categories": ["NOPE"]}]`
	if err := os.WriteFile(filepath.Join(dir, "catalog.json"), []byte(items), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected error")
	}
}

func TestShippedCatalogLoads(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "configs"))
	if err != nil {
		t.Fatalf("configs: %v", err)
	}
	if c.Index.Len() != 19 || len(c.Stats.Defs) != 6 {
		t.Fatalf("entries=%d stats=%d", c.Index.Len(), len(c.Stats.Defs))
	}
	if got := c.Filter.SubsetOf(CategoryMobHeads); len(got) != 2 {
		t.Fatalf("mob heads: %d", len(got))
	}
}
