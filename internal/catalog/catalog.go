package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type Catalog struct {
	Index  *Index
	Filter *Filter
	Stats  StatCatalog

	Digest string
}

type ItemDef struct {
	Index      int      `json:"index"`
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Kind       string   `json:"kind"` // "BLOCK","ITEM"
	Categories []string `json:"categories,omitempty"`
}

// StatDef is a built-in, mod-level statistic shown on the General statistics tab.
type StatDef struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Icon   string `json:"icon"`
	Format string `json:"format,omitempty"`
}

type StatCatalog struct {
	Defs   []StatDef
	ByID   map[string]StatDef
	Digest string
}

func New() *Catalog {
	idx := NewIndex()
	return &Catalog{
		Index:  idx,
		Filter: NewFilter(idx),
		Stats:  StatCatalog{ByID: map[string]StatDef{}},
	}
}

// Register places e at position and tags it with cats.
func (c *Catalog) Register(e Entry, position int, cats ...Category) {
	e.Categories = append([]Category(nil), cats...)
	c.Index.Register(e, position)
	c.Filter.Tag(e.ID, cats...)
}

func (c *Catalog) RegisterStat(def StatDef) {
	if _, ok := c.Stats.ByID[def.ID]; !ok {
		c.Stats.Defs = append(c.Stats.Defs, def)
	}
	c.Stats.ByID[def.ID] = def
	sort.Slice(c.Stats.Defs, func(i, j int) bool { return c.Stats.Defs[i].ID < c.Stats.Defs[j].ID })
}

func Load(configDir string) (*Catalog, error) {
	c := New()

	itemsRaw, err := os.ReadFile(filepath.Join(configDir, "catalog.json"))
	if err != nil {
		return nil, err
	}
	if err := loadItems(itemsRaw, c); err != nil {
		return nil, fmt.Errorf("catalog.json: %w", err)
	}

	statsRaw, err := os.ReadFile(filepath.Join(configDir, "stat_items.json"))
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if len(statsRaw) > 0 {
		if err := loadStats(statsRaw, c); err != nil {
			return nil, fmt.Errorf("stat_items.json: %w", err)
		}
		c.Stats.Digest = sha256Hex(statsRaw)
	}

	c.Digest = sha256Hex(itemsRaw)
	// Sessions read the flattened index concurrently; build the cache while single-threaded.
	c.Index.Flatten()
	return c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadItems(raw []byte, c *Catalog) error {
	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return err
	}
	seen := map[string]int{}
	for _, d := range defs {
		if strings.TrimSpace(d.ID) == "" {
			return fmt.Errorf("empty id at index %d", d.Index)
		}
		if pos, ok := seen[d.ID]; ok && pos != d.Index {
			return fmt.Errorf("duplicate id %s at index %d and %d", d.ID, pos, d.Index)
		}
		seen[d.ID] = d.Index

		kind := Kind(strings.ToUpper(strings.TrimSpace(d.Kind)))
		switch kind {
		case "":
			kind = KindItem
		case KindBlock, KindItem:
		default:
			return fmt.Errorf("%s: unknown kind %q", d.ID, d.Kind)
		}

		cats := make([]Category, 0, len(d.Categories))
		for _, s := range d.Categories {
			cat, err := ParseCategory(s)
			if err != nil {
				return fmt.Errorf("%s: %w", d.ID, err)
			}
			cats = append(cats, cat)
		}

		name := d.Name
		if name == "" {
			name = d.ID
		}
		c.Register(Entry{ID: d.ID, Name: name, Kind: kind}, d.Index, cats...)
	}
	return nil
}

func loadStats(raw []byte, c *Catalog) error {
	var defs []StatDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return err
	}
	for _, d := range defs {
		if strings.TrimSpace(d.ID) == "" {
			return fmt.Errorf("empty id")
		}
		if d.Name == "" {
			d.Name = d.ID
		}
		c.RegisterStat(d)
	}
	return nil
}
