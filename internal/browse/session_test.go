package browse

import (
	"errors"
	"fmt"
	"testing"

	"topper.blackblock.rocks/internal/browse/sorting"
	"topper.blackblock.rocks/internal/catalog"
	"topper.blackblock.rocks/internal/protocol"
	"topper.blackblock.rocks/internal/stats/counters"
	"topper.blackblock.rocks/internal/stats/custom"
)

// testDeps registers 100 entries: even positions are building blocks, odd ones food items.
func testDeps(t *testing.T) (Deps, *counters.Book) {
	t.Helper()
	cat := catalog.New()
	for i := 0; i < 100; i++ {
		e := catalog.Entry{ID: fmt.Sprintf("e%02d", i), Name: fmt.Sprintf("Entry %02d", i), Kind: catalog.KindItem}
		c := catalog.CategoryFood
		if i%2 == 0 {
			e.Kind = catalog.KindBlock
			c = catalog.CategoryBuilding
		}
		cat.Register(e, i, c)
	}
	cat.RegisterStat(catalog.StatDef{ID: "jump", Name: "Jumps", Icon: "feather"})
	cat.RegisterStat(catalog.StatDef{ID: "walk_one_cm", Name: "Distance Walked", Icon: "boots", Format: "distance"})
	book := counters.NewBook()
	return Deps{
		Catalog:            cat,
		Counters:           book,
		Store:              custom.NewStore(custom.Options{}),
		CreativePageSize:   36,
		StatisticsPageSize: 40,
	}, book
}

func mustHandle(t *testing.T, s *Session, ev Event) Outcome {
	t.Helper()
	out, err := s.Handle(ev)
	if err != nil {
		t.Fatalf("%s: %v", ev.Action, err)
	}
	return out
}

func names(v protocol.ViewMsg) []string {
	out := make([]string, 0, len(v.Entries))
	for _, e := range v.Entries {
		out = append(out, e.Name)
	}
	return out
}

func TestCreativePagination(t *testing.T) {
	deps, _ := testDeps(t)
	s, v := Open(deps, "alice", ScreenCreative)
	if v.Title != "All Items" || len(v.Entries) != 36 || v.Page.PageCount != 3 {
		t.Fatalf("first view: title=%q entries=%d pages=%d", v.Title, len(v.Entries), v.Page.PageCount)
	}

	out := mustHandle(t, s, Event{Action: protocol.ActionSelectTab, Tab: "BUILDING_BLOCKS"})
	if out.View == nil || out.View.Title != "Building Blocks" || out.View.Page.PageCount != 2 {
		t.Fatalf("building tab: %q %#v", out.View.Title, out.View.Page)
	}
	out = mustHandle(t, s, Event{Action: protocol.ActionSelectTab, Tab: "ALL"})
	if out.View == nil || out.View.Page.PageCount != 3 || len(out.View.Entries) != 36 {
		t.Fatalf("all tab: %#v", out.View.Page)
	}

	out = mustHandle(t, s, Event{Action: protocol.ActionSetPage, Page: 4})
	if out.View == nil || out.View.Page.Page != 3 || len(out.View.Entries) != 28 || out.View.Entries[0].EntryID != "e72" {
		t.Fatalf("page 4 should clamp to 3: %#v", out.View.Page)
	}
	if out := mustHandle(t, s, Event{Action: protocol.ActionSetPage, Page: 3}); out.View != nil {
		t.Fatalf("same page re-rendered")
	}
	if out := mustHandle(t, s, Event{Action: protocol.ActionSetPage, Page: 9}); out.View != nil {
		t.Fatalf("clamped same page re-rendered")
	}

	out = mustHandle(t, s, Event{Action: protocol.ActionNextOrder})
	if out.View.Page.Page != 1 || out.View.Entries[0].EntryID != "e99" {
		t.Fatalf("order change: page=%d first=%s", out.View.Page.Page, out.View.Entries[0].EntryID)
	}
}

func TestCreativeSkipsOwnerCriterion(t *testing.T) {
	deps, _ := testDeps(t)
	s, _ := Open(deps, "alice", ScreenCreative)
	var seen []sorting.Criterion
	for i := 0; i < 8; i++ {
		mustHandle(t, s, Event{Action: protocol.ActionNextCriterion})
		seen = append(seen, s.Criterion())
	}
	for _, c := range seen {
		if c == sorting.Owner {
			t.Fatalf("owner reachable on creative: %v", seen)
		}
	}
	if seen[0] != sorting.Alphabetical || seen[1] != sorting.Mined || seen[7] != sorting.Default {
		t.Fatalf("cycle: %v", seen)
	}
	mustHandle(t, s, Event{Action: protocol.ActionPrevCriterion})
	if s.Criterion() != sorting.Dropped {
		t.Fatalf("prev from default: %v", s.Criterion())
	}
}

func TestCreativeCounterSortAndGive(t *testing.T) {
	deps, book := testDeps(t)
	book.SetCount("alice", counters.Crafted, "e10", 5)
	book.SetCount("alice", counters.Crafted, "e20", 9)
	s, _ := Open(deps, "alice", ScreenCreative)
	for s.Criterion() != sorting.Crafted {
		mustHandle(t, s, Event{Action: protocol.ActionNextCriterion})
	}
	v := s.Render()
	if v.Entries[0].EntryID != "e20" || v.Entries[1].EntryID != "e10" {
		t.Fatalf("crafted order: %v", names(v)[:3])
	}
	if len(v.Entries[0].Lore) != 1 || v.Entries[0].Lore[0] != "Times Crafted: 9" {
		t.Fatalf("lore: %v", v.Entries[0].Lore)
	}

	out := mustHandle(t, s, Event{Action: protocol.ActionClick, Slot: 1, Shift: true})
	if out.Give == nil || out.Give.EntryID != "e10" || !out.Give.FullStack || out.View != nil {
		t.Fatalf("give: %#v", out)
	}
	if out := mustHandle(t, s, Event{Action: protocol.ActionClick, Slot: 99}); out.Give != nil || out.Chat != nil {
		t.Fatalf("click outside window: %#v", out)
	}
}

func TestStatisticsTabCriteria(t *testing.T) {
	deps, _ := testDeps(t)
	s, v := Open(deps, "alice", ScreenStatistics)
	if len(v.Toggles) != 1 || v.Toggles[0].ID != "hide_empty" {
		t.Fatalf("toggles: %#v", v.Toggles)
	}

	var general []sorting.Criterion
	for i := 0; i < 3; i++ {
		mustHandle(t, s, Event{Action: protocol.ActionNextCriterion})
		general = append(general, s.Criterion())
	}
	if general[0] != sorting.Alphabetical || general[1] != sorting.Owner || general[2] != sorting.Default {
		t.Fatalf("general cycle: %v", general)
	}

	mustHandle(t, s, Event{Action: protocol.ActionNextCriterion})
	mustHandle(t, s, Event{Action: protocol.ActionNextCriterion})
	if s.Criterion() != sorting.Owner {
		t.Fatalf("setup: %v", s.Criterion())
	}
	out := mustHandle(t, s, Event{Action: protocol.ActionSelectTab, Tab: "items"})
	if s.Criterion() != sorting.Mined {
		t.Fatalf("owner should advance to mined on items tab, got %v", s.Criterion())
	}
	if out.View.Page.PageCount != 3 || out.View.Title != "Statistics: Items" {
		t.Fatalf("items view: %q %#v", out.View.Title, out.View.Page)
	}

	mustHandle(t, s, Event{Action: protocol.ActionSelectTab, Tab: "GENERAL"})
	if s.Criterion() != sorting.Default {
		t.Fatalf("mined should wrap to default on general tab, got %v", s.Criterion())
	}
	if _, err := s.Handle(Event{Action: protocol.ActionSelectTab, Tab: "FOOD"}); !errors.Is(err, ErrUnknownTab) {
		t.Fatalf("err=%v", err)
	}
}

func TestGeneralRowsDefaultGroupsThenReverses(t *testing.T) {
	deps, book := testDeps(t)
	book.SetGeneral("alice", "walk_one_cm", 150000)
	_, _ = deps.Store.Create("kills", "kills", "alice")
	_, _ = deps.Store.Create("apples", "Apples Eaten", "bob")
	_ = deps.Store.SetScore("kills", "alice", 3)

	s, v := Open(deps, "alice", ScreenStatistics)
	want := []string{"Distance Walked", "Jumps", "Apples Eaten", "kills"}
	if got := names(v); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("default: %v want %v", got, want)
	}
	if v.Entries[0].Lore[0] != "1.50 km" {
		t.Fatalf("formatted lore: %v", v.Entries[0].Lore)
	}
	if v.Entries[3].Lore[1] != "Custom statistic [alice]" || v.Entries[3].Icon != "" {
		t.Fatalf("custom lore: %#v", v.Entries[3])
	}

	out := mustHandle(t, s, Event{Action: protocol.ActionNextOrder})
	want = []string{"kills", "Apples Eaten", "Jumps", "Distance Walked"}
	if got := names(*out.View); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("ascending: %v want %v", got, want)
	}

	out = mustHandle(t, s, Event{Action: protocol.ActionToggleHideEmpty})
	want = []string{"kills", "Distance Walked"}
	if got := names(*out.View); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("hide empty: %v want %v", got, want)
	}

	click := mustHandle(t, s, Event{Action: protocol.ActionClick, Slot: 0})
	if len(click.Chat) != 1 || click.Chat[0] != "kills: 3" {
		t.Fatalf("general click: %v", click.Chat)
	}
}

func TestItemsHideEmptyAndClick(t *testing.T) {
	deps, book := testDeps(t)
	book.SetCount("alice", counters.Mined, "e01", 4) // e01 is an item; mined does not count
	book.SetCount("alice", counters.Dropped, "e03", 2)
	book.SetCount("alice", counters.Mined, "e04", 1)

	s, _ := Open(deps, "alice", ScreenStatistics)
	mustHandle(t, s, Event{Action: protocol.ActionSelectTab, Tab: "ITEMS"})
	out := mustHandle(t, s, Event{Action: protocol.ActionToggleHideEmpty})
	if got := names(*out.View); fmt.Sprint(got) != fmt.Sprint([]string{"Entry 03", "Entry 04"}) {
		t.Fatalf("hide empty: %v", got)
	}
	if !s.HideEmpty() || out.View.Page.PageCount != 1 {
		t.Fatalf("state: hide=%v pages=%d", s.HideEmpty(), out.View.Page.PageCount)
	}

	click := mustHandle(t, s, Event{Action: protocol.ActionClick, Slot: 0})
	if len(click.Chat) != 7 || click.Chat[0] != "Entry 03 has the following statistics:" || click.Chat[6] != "- Dropped: 2" {
		t.Fatalf("chat: %q", click.Chat)
	}

	mustHandle(t, s, Event{Action: protocol.ActionToggleHideEmpty})
	click = mustHandle(t, s, Event{Action: protocol.ActionClick, Slot: 1})
	if len(click.Chat) != 7 || click.Chat[0] != "Entry 01 has the following statistics:" || click.Chat[1] != "- Times Mined: 0" {
		t.Fatalf("item chat should not report mined: %q", click.Chat)
	}
	click = mustHandle(t, s, Event{Action: protocol.ActionClick, Slot: 4})
	if click.Chat[0] != "Entry 04 has the following statistics:" || click.Chat[1] != "- Times Mined: 1" {
		t.Fatalf("block chat: %q", click.Chat)
	}
}

func TestTransitionsResetPage(t *testing.T) {
	deps, _ := testDeps(t)
	for _, tc := range []struct {
		screen Screen
		ev     Event
	}{
		{ScreenCreative, Event{Action: protocol.ActionNextCriterion}},
		{ScreenCreative, Event{Action: protocol.ActionPrevCriterion}},
		{ScreenCreative, Event{Action: protocol.ActionNextOrder}},
		{ScreenCreative, Event{Action: protocol.ActionSelectTab, Tab: "FOOD"}},
		{ScreenStatistics, Event{Action: protocol.ActionSelectTab, Tab: "ITEMS"}},
		{ScreenStatistics, Event{Action: protocol.ActionToggleHideEmpty}},
	} {
		s, _ := Open(deps, "alice", tc.screen)
		if tc.screen == ScreenStatistics {
			mustHandle(t, s, Event{Action: protocol.ActionSelectTab, Tab: "ITEMS"})
		}
		out := mustHandle(t, s, Event{Action: protocol.ActionSetPage, Page: 2})
		if out.View == nil || out.View.Page.Page != 2 {
			t.Fatalf("%s %s: setup page: %#v", tc.screen, tc.ev.Action, out.View)
		}
		out = mustHandle(t, s, tc.ev)
		if out.View == nil || out.View.Page.Page != 1 || s.Page() != 1 {
			t.Fatalf("%s %s: page not reset: %#v", tc.screen, tc.ev.Action, out.View)
		}
	}
}

func TestCreativeRejectsHideEmptyAndUnknownAction(t *testing.T) {
	deps, _ := testDeps(t)
	s, _ := Open(deps, "alice", ScreenCreative)
	if _, err := s.Handle(Event{Action: protocol.ActionToggleHideEmpty}); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("err=%v", err)
	}
	if _, err := s.Handle(Event{Action: "jump"}); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("err=%v", err)
	}
}

func TestCreativeSortDoesNotDisturbCatalog(t *testing.T) {
	deps, _ := testDeps(t)
	s, _ := Open(deps, "alice", ScreenCreative)
	mustHandle(t, s, Event{Action: protocol.ActionSelectTab, Tab: "ALL"})
	mustHandle(t, s, Event{Action: protocol.ActionNextOrder})
	flat := deps.Catalog.Index.Flatten()
	if flat[0].ID != "e00" || flat[99].ID != "e99" {
		t.Fatalf("shared flatten slice reordered: %s..%s", flat[0].ID, flat[99].ID)
	}
}
