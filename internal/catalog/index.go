package catalog

import "sort"

// Index is the ordered registration table for catalog entries.
//
// Writes are not synchronized: all registration happens during startup, before
// any browsing session exists. After that the index is shared read-only.
type Index struct {
	byPos map[int]Entry

	version uint64

	flat        []Entry
	flatVersion uint64
	flatValid   bool
}

func NewIndex() *Index {
	return &Index{byPos: map[int]Entry{}}
}

// Register stores e at position. A later registration at the same position replaces the
// earlier one.
func (x *Index) Register(e Entry, position int) {
	e.Index = position
	x.byPos[position] = e
	x.version++
}

func (x *Index) Version() uint64 { return x.version }

func (x *Index) Len() int { return len(x.byPos) }

// Flatten returns every entry in position order. The slice is cached until the next
// Register call and must not be modified by callers.
func (x *Index) Flatten() []Entry {
	if x.flatValid && x.flatVersion == x.version {
		return x.flat
	}
	positions := make([]int, 0, len(x.byPos))
	for p := range x.byPos {
		positions = append(positions, p)
	}
	sort.Ints(positions)

	flat := make([]Entry, 0, len(positions))
	for _, p := range positions {
		flat = append(flat, x.byPos[p])
	}
	x.flat = flat
	x.flatVersion = x.version
	x.flatValid = true
	return flat
}

func (x *Index) Lookup(id string) (Entry, bool) {
	for _, e := range x.Flatten() {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}
