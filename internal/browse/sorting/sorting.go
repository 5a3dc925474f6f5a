package sorting

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"topper.blackblock.rocks/internal/catalog"
	"topper.blackblock.rocks/internal/stats/counters"
)

type Criterion int

// Cycle order. Next/Prev walk this sequence modulo its length.
const (
	Default Criterion = iota
	Alphabetical
	Owner
	Mined
	Crafted
	Used
	Broken
	PickedUp
	Dropped

	numCriteria
)

// Row is the projection of a sortable item that the comparators look at.
type Row struct {
	Name  string
	Owner string
	// Entry is nil for rows that are not catalog entries (e.g. custom statistics).
	Entry *catalog.Entry
}

type key struct {
	name  string
	lower string
	owner string
	value int
}

// pass is one stable sort step; passes run in order so the last pass is the primary key.
type pass func(a, b key) int

type criterionDef struct {
	name    string
	icon    string
	counter counters.Type
	passes  []pass
}

// sentinel ranks entries a counter does not apply to below every real value.
const sentinel = math.MinInt

var criteria = [numCriteria]criterionDef{
	Default:      {name: "Default"},
	Alphabetical: {name: "Alphabetical", icon: "sort/alphabetical", passes: []pass{byLowerName}},
	Owner:        {name: "Owner", icon: "sort/owner", passes: []pass{byName, byOwner}},
	Mined:        {name: "Times Mined", icon: "sort/mined", counter: counters.Mined, passes: []pass{byValueDesc}},
	Crafted:      {name: "Times Crafted", icon: "sort/crafted", counter: counters.Crafted, passes: []pass{byValueDesc}},
	Used:         {name: "Times Used", icon: "sort/used", counter: counters.Used, passes: []pass{byValueDesc}},
	Broken:       {name: "Times Broken", icon: "sort/broken", counter: counters.Broken, passes: []pass{byValueDesc}},
	PickedUp:     {name: "Picked Up", icon: "sort/picked_up", counter: counters.PickedUp, passes: []pass{byValueDesc}},
	Dropped:      {name: "Dropped", icon: "sort/dropped", counter: counters.Dropped, passes: []pass{byValueDesc}},
}

func byLowerName(a, b key) int { return strings.Compare(a.lower, b.lower) }
func byName(a, b key) int      { return strings.Compare(a.name, b.name) }

func byOwner(a, b key) int {
	switch {
	case a.owner == b.owner:
		return 0
	case a.owner == "":
		return 1
	case b.owner == "":
		return -1
	default:
		return strings.Compare(a.owner, b.owner)
	}
}

func byValueDesc(a, b key) int {
	switch {
	case a.value > b.value:
		return -1
	case a.value < b.value:
		return 1
	default:
		return 0
	}
}

// Criteria returns every criterion in cycle order.
func Criteria() []Criterion {
	out := make([]Criterion, numCriteria)
	for i := range out {
		out[i] = Criterion(i)
	}
	return out
}

func (c Criterion) valid() bool { return c >= 0 && c < numCriteria }

func (c Criterion) String() string {
	if !c.valid() {
		return fmt.Sprintf("Criterion(%d)", int(c))
	}
	return criteria[c].name
}

// ID is the lowercase wire name, e.g. "times_mined".
func (c Criterion) ID() string {
	return strings.ReplaceAll(strings.ToLower(c.String()), " ", "_")
}

// Icon returns the icon id, or "" when the criterion has none.
func (c Criterion) Icon() string {
	if !c.valid() {
		return ""
	}
	return criteria[c].icon
}

// Counter returns the counter the criterion sorts by, or counters.None.
func (c Criterion) Counter() counters.Type {
	if !c.valid() {
		return counters.None
	}
	return criteria[c].counter
}

func (c Criterion) Next() Criterion { return Criterion((int(c) + 1) % int(numCriteria)) }

func (c Criterion) Prev() Criterion {
	return Criterion((int(c) + int(numCriteria) - 1) % int(numCriteria))
}

// Sort orders items in place by c for user, then reverses the result when o is Ascending.
// Every criterion is computed as its descending ordering first, including Default.
func Sort[T any](items []T, c Criterion, o Order, user string, src counters.Source, row func(T) Row) {
	if !c.valid() {
		c = Default
	}
	def := criteria[c]
	if len(def.passes) > 0 && len(items) > 1 {
		type keyed struct {
			item T
			k    key
		}
		tmp := make([]keyed, len(items))
		for i, it := range items {
			r := row(it)
			tmp[i] = keyed{item: it, k: key{
				name:  r.Name,
				lower: strings.ToLower(r.Name),
				owner: r.Owner,
				value: counterValue(def.counter, r, user, src),
			}}
		}
		for _, p := range def.passes {
			slices.SortStableFunc(tmp, func(a, b keyed) int { return p(a.k, b.k) })
		}
		for i := range tmp {
			items[i] = tmp[i].item
		}
	}
	if o == Ascending {
		slices.Reverse(items)
	}
}

func counterValue(t counters.Type, r Row, user string, src counters.Source) int {
	if t == counters.None {
		return 0
	}
	if t == counters.Mined && (r.Entry == nil || !r.Entry.IsBlock()) {
		return sentinel
	}
	if r.Entry == nil || src == nil {
		return 0
	}
	return src.Count(user, t, r.Entry.ID)
}
