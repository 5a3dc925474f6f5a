package catalog

// Filter maps categories to the entries explicitly tagged with them.
// Like Index, it is written only during startup registration.
type Filter struct {
	index  *Index
	tagged map[Category]map[string]bool
}

func NewFilter(index *Index) *Filter {
	return &Filter{index: index, tagged: map[Category]map[string]bool{}}
}

func (f *Filter) Tag(entryID string, cats ...Category) {
	for _, c := range cats {
		if c == CategoryAll {
			continue
		}
		set := f.tagged[c]
		if set == nil {
			set = map[string]bool{}
			f.tagged[c] = set
		}
		set[entryID] = true
	}
}

func (f *Filter) Has(entryID string, c Category) bool {
	if c == CategoryAll {
		return true
	}
	return f.tagged[c][entryID]
}

// SubsetOf returns the entries tagged with c in index order. CategoryAll returns the
// flattened index itself.
func (f *Filter) SubsetOf(c Category) []Entry {
	all := f.index.Flatten()
	if c == CategoryAll {
		return all
	}
	set := f.tagged[c]
	out := make([]Entry, 0, len(set))
	for _, e := range all {
		if set[e.ID] {
			out = append(out, e)
		}
	}
	return out
}
