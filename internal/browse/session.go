// Package browse implements the per-user browsing screens: the creative catalog and the
// statistics screen. Every state change re-renders the whole view.
package browse

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"topper.blackblock.rocks/internal/browse/pager"
	"topper.blackblock.rocks/internal/browse/sorting"
	"topper.blackblock.rocks/internal/catalog"
	"topper.blackblock.rocks/internal/permissions"
	"topper.blackblock.rocks/internal/protocol"
	"topper.blackblock.rocks/internal/stats/counters"
	"topper.blackblock.rocks/internal/stats/custom"
	"topper.blackblock.rocks/internal/stats/format"
)

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrUnknownTab    = errors.New("unknown tab")
	ErrUnknownScreen = errors.New("unknown screen")
)

type Screen int

const (
	ScreenCreative Screen = iota
	ScreenStatistics
)

func (s Screen) String() string {
	if s == ScreenStatistics {
		return protocol.ScreenStatistics
	}
	return protocol.ScreenCreative
}

func ParseScreen(s string) (Screen, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case protocol.ScreenCreative:
		return ScreenCreative, nil
	case protocol.ScreenStatistics:
		return ScreenStatistics, nil
	}
	return ScreenCreative, fmt.Errorf("%w: %q", ErrUnknownScreen, s)
}

// StatsTab is a tab of the statistics screen.
type StatsTab int

const (
	TabGeneral StatsTab = iota
	TabItems
)

var statsTabs = [...]struct{ id, title, icon string }{
	TabGeneral: {id: "GENERAL", title: "General", icon: "tab/general"},
	TabItems:   {id: "ITEMS", title: "Items", icon: "tab/items"},
}

func (t StatsTab) String() string { return statsTabs[t].id }

// Deps are the shared read-mostly collaborators every session renders from.
type Deps struct {
	Catalog  *catalog.Catalog
	Counters counters.Source
	Store    *custom.Store
	Perms    permissions.Checker

	CreativePageSize   int
	StatisticsPageSize int
}

type Event struct {
	Action string
	Tab    string
	Page   int
	Slot   int
	Shift  bool
}

// Outcome is what a handled event produces. View is nil when nothing needs re-rendering.
type Outcome struct {
	View *protocol.ViewMsg
	Chat []string
	Give *protocol.GiveMsg
}

// row is one renderable line: a catalog entry or a general statistic.
type row struct {
	name  string
	owner string
	entry *catalog.Entry
	icon  string
	lore  []string

	// general rows only
	value     string
	isGeneral bool
}

func sortRow(r row) sorting.Row { return sorting.Row{Name: r.name, Owner: r.owner, Entry: r.entry} }

// Session is one user's open screen. It is owned by a single goroutine.
type Session struct {
	deps Deps
	user string

	screen    Screen
	category  catalog.Category
	statsTab  StatsTab
	criterion sorting.Criterion
	order     sorting.Order
	page      int
	hideEmpty bool

	shown     int
	pageCount int
	visible   []row
}

// Open creates a session on screen and renders its first page.
func Open(deps Deps, user string, screen Screen) (*Session, protocol.ViewMsg) {
	s := &Session{
		deps:      deps,
		user:      user,
		screen:    screen,
		category:  catalog.CategoryAll,
		statsTab:  TabGeneral,
		criterion: sorting.Default,
		order:     sorting.Descending,
		page:      1,
	}
	return s, s.Render()
}

func (s *Session) User() string                 { return s.user }
func (s *Session) Screen() Screen               { return s.screen }
func (s *Session) Criterion() sorting.Criterion { return s.criterion }
func (s *Session) Order() sorting.Order         { return s.order }
func (s *Session) Page() int                    { return s.page }
func (s *Session) HideEmpty() bool              { return s.hideEmpty }

// Allowed reports whether c may be selected on the current screen and tab.
func (s *Session) Allowed(c sorting.Criterion) bool {
	if s.screen == ScreenCreative {
		return c != sorting.Owner
	}
	switch c {
	case sorting.Default, sorting.Alphabetical:
		return true
	case sorting.Owner:
		return s.statsTab == TabGeneral
	default:
		return s.statsTab == TabItems && c.Counter() != counters.None
	}
}

// advance steps with step until an allowed criterion; at least the current one is tried first.
func (s *Session) advance(step func(sorting.Criterion) sorting.Criterion, from sorting.Criterion) sorting.Criterion {
	c := from
	for range sorting.Criteria() {
		if s.Allowed(c) {
			return c
		}
		c = step(c)
	}
	return sorting.Default
}

func next(c sorting.Criterion) sorting.Criterion { return c.Next() }
func prev(c sorting.Criterion) sorting.Criterion { return c.Prev() }

func (s *Session) Handle(ev Event) (Outcome, error) {
	switch ev.Action {
	case protocol.ActionSelectTab:
		if err := s.selectTab(ev.Tab); err != nil {
			return Outcome{}, err
		}
		s.criterion = s.advance(next, s.criterion)
	case protocol.ActionNextCriterion:
		s.criterion = s.advance(next, s.criterion.Next())
	case protocol.ActionPrevCriterion:
		s.criterion = s.advance(prev, s.criterion.Prev())
	case protocol.ActionNextOrder:
		s.order = s.order.Next()
	case protocol.ActionPrevOrder:
		s.order = s.order.Prev()
	case protocol.ActionToggleHideEmpty:
		if s.screen != ScreenStatistics {
			return Outcome{}, fmt.Errorf("%w: %s on %s", ErrUnknownAction, ev.Action, s.screen)
		}
		s.hideEmpty = !s.hideEmpty
	case protocol.ActionSetPage:
		target := pager.Clamp(ev.Page, s.pageCount)
		if target == s.shown {
			return Outcome{}, nil
		}
		s.page = target
		v := s.Render()
		return Outcome{View: &v}, nil
	case protocol.ActionClick:
		return s.click(ev.Slot, ev.Shift), nil
	default:
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownAction, ev.Action)
	}
	s.page = 1
	v := s.Render()
	return Outcome{View: &v}, nil
}

func (s *Session) selectTab(id string) error {
	if s.screen == ScreenCreative {
		c, err := catalog.ParseCategory(id)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrUnknownTab, id)
		}
		s.category = c
		return nil
	}
	for i, t := range statsTabs {
		if strings.EqualFold(t.id, strings.TrimSpace(id)) {
			s.statsTab = StatsTab(i)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownTab, id)
}

func (s *Session) click(slot int, shift bool) Outcome {
	if slot < 0 || slot >= len(s.visible) {
		return Outcome{}
	}
	r := s.visible[slot]
	switch {
	case s.screen == ScreenCreative:
		return Outcome{Give: &protocol.GiveMsg{
			Type:            protocol.TypeGive,
			ProtocolVersion: protocol.Version,
			EntryID:         r.entry.ID,
			FullStack:       shift,
		}}
	case r.isGeneral:
		return Outcome{Chat: []string{r.name + ": " + r.value}}
	default:
		lines := []string{r.name + " has the following statistics:"}
		for _, t := range counters.All() {
			v := 0
			if t != counters.Mined || r.entry.IsBlock() {
				v = s.count(t, r.entry.ID)
			}
			lines = append(lines, "- "+t.Label()+": "+format.Value(format.Default, v))
		}
		return Outcome{Chat: lines}
	}
}

func (s *Session) count(t counters.Type, entryID string) int {
	if s.deps.Counters == nil {
		return 0
	}
	return s.deps.Counters.Count(s.user, t, entryID)
}

func (s *Session) pageSize() int {
	if s.screen == ScreenStatistics {
		return s.deps.StatisticsPageSize
	}
	return s.deps.CreativePageSize
}

// Render recomputes filter, sort and page window for the current state.
func (s *Session) Render() protocol.ViewMsg {
	rows := s.rows()
	vis, page, count := pager.Window(rows, s.pageSize(), s.page)
	s.page, s.shown, s.pageCount = page, page, count
	s.visible = vis

	v := protocol.ViewMsg{
		Type:            protocol.TypeView,
		ProtocolVersion: protocol.Version,
		Screen:          s.screen.String(),
		Criterion:       protocol.ButtonView{ID: s.criterion.ID(), Label: s.criterion.String(), Icon: s.criterion.Icon()},
		Order:           protocol.ButtonView{ID: s.order.ID(), Label: s.order.String(), Icon: s.order.Icon()},
		Entries:         make([]protocol.EntryView, 0, len(vis)),
		Page:            protocol.PageView{Page: page, PageCount: count},
	}
	if s.screen == ScreenCreative {
		v.Title = s.category.Title()
		for _, c := range catalog.Categories() {
			v.Tabs = append(v.Tabs, protocol.TabView{ID: c.String(), Title: c.Title(), Icon: c.Icon(), Selected: c == s.category})
		}
	} else {
		v.Title = "Statistics: " + statsTabs[s.statsTab].title
		for i, t := range statsTabs {
			v.Tabs = append(v.Tabs, protocol.TabView{ID: t.id, Title: t.title, Icon: t.icon, Selected: StatsTab(i) == s.statsTab})
		}
		v.Toggles = []protocol.ToggleView{{ID: "hide_empty", Label: "Hide Empty", On: s.hideEmpty}}
	}
	for i, r := range vis {
		ev := protocol.EntryView{Slot: i, Name: r.name, Icon: r.icon, Lore: r.lore}
		if r.entry != nil {
			ev.EntryID = r.entry.ID
		}
		v.Entries = append(v.Entries, ev)
	}
	return v
}

func (s *Session) rows() []row {
	switch {
	case s.screen == ScreenCreative:
		return s.creativeRows()
	case s.statsTab == TabItems:
		return s.itemRows()
	default:
		return s.generalRows()
	}
}

func (s *Session) entryRows(entries []catalog.Entry, lore func(e *catalog.Entry) []string) []row {
	out := make([]row, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		r := row{name: e.Name, entry: e, icon: e.ID}
		if lore != nil {
			r.lore = lore(e)
		}
		out = append(out, r)
	}
	return out
}

func (s *Session) creativeRows() []row {
	if s.deps.Catalog == nil {
		return nil
	}
	// SubsetOf may hand out the index's shared slice.
	entries := slices.Clone(s.deps.Catalog.Filter.SubsetOf(s.category))
	t := s.criterion.Counter()
	var lore func(*catalog.Entry) []string
	if t != counters.None {
		lore = func(e *catalog.Entry) []string {
			if t == counters.Mined && !e.IsBlock() {
				return nil
			}
			return []string{t.Label() + ": " + format.Value(format.Default, s.count(t, e.ID))}
		}
	}
	rows := s.entryRows(entries, lore)
	sorting.Sort(rows, s.criterion, s.order, s.user, s.deps.Counters, sortRow)
	return rows
}

func (s *Session) itemRows() []row {
	if s.deps.Catalog == nil {
		return nil
	}
	all := s.deps.Catalog.Index.Flatten()
	entries := make([]catalog.Entry, 0, len(all))
	for _, e := range all {
		if s.hideEmpty && s.emptyEntry(e) {
			continue
		}
		entries = append(entries, e)
	}
	rows := s.entryRows(entries, func(e *catalog.Entry) []string {
		var lore []string
		for _, t := range counters.All() {
			if t == counters.Mined && !e.IsBlock() {
				continue
			}
			lore = append(lore, t.Label()+": "+format.Value(format.Default, s.count(t, e.ID)))
		}
		return lore
	})
	sorting.Sort(rows, s.criterion, s.order, s.user, s.deps.Counters, sortRow)
	return rows
}

func (s *Session) emptyEntry(e catalog.Entry) bool {
	for _, t := range counters.All() {
		if t == counters.Mined && !e.IsBlock() {
			continue
		}
		if s.count(t, e.ID) != 0 {
			return false
		}
	}
	return true
}

// generalRows lists built-in statistics followed by custom ones. Under Default each group is
// alphabetical on its own.
func (s *Session) generalRows() []row {
	var builtin, customs []row
	if s.deps.Catalog != nil {
		for _, def := range s.deps.Catalog.Stats.Defs {
			v := 0
			if s.deps.Counters != nil {
				v = s.deps.Counters.General(s.user, def.ID)
			}
			if s.hideEmpty && v == 0 {
				continue
			}
			fv := format.Value(def.Format, v)
			builtin = append(builtin, row{name: def.Name, icon: def.Icon, lore: []string{fv}, value: fv, isGeneral: true})
		}
	}
	if s.deps.Store != nil {
		for _, st := range s.deps.Store.ListVisibleTo(s.user, custom.ScopeAll, s.deps.Perms) {
			v := st.Score(s.user)
			if s.hideEmpty && v == 0 {
				continue
			}
			fv := format.Value(format.Default, v)
			customs = append(customs, row{
				name:      st.DisplayName,
				owner:     st.Owner,
				icon:      st.DisplayEntry,
				lore:      []string{fv, "Custom statistic [" + st.Owner + "]"},
				value:     fv,
				isGeneral: true,
			})
		}
	}
	if s.criterion == sorting.Default {
		byName := func(rs []row) {
			sort.SliceStable(rs, func(i, j int) bool { return strings.ToLower(rs[i].name) < strings.ToLower(rs[j].name) })
		}
		byName(builtin)
		byName(customs)
	}
	rows := append(builtin, customs...)
	sorting.Sort(rows, s.criterion, s.order, s.user, s.deps.Counters, sortRow)
	return rows
}
