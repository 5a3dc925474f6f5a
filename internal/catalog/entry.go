package catalog

import (
	"fmt"
	"strings"
)

type Kind string

const (
	KindBlock Kind = "BLOCK"
	KindItem  Kind = "ITEM"
)

// Entry is one browsable catalog item. Entries are immutable after registration.
type Entry struct {
	ID         string
	Name       string
	Kind       Kind
	Index      int
	Categories []Category
}

func (e Entry) IsBlock() bool { return e.Kind == KindBlock }

type Category int

const (
	CategoryAll Category = iota
	CategoryBuilding
	CategoryFunctional
	CategoryCosmetics
	CategoryMobHeads
	CategoryFood
	CategoryMinigame
	CategoryOther
)

type categoryDef struct {
	id    string
	title string
	icon  string
}

var categoryDefs = [...]categoryDef{
	CategoryAll:        {id: "ALL", title: "All Items", icon: "tab/all"},
	CategoryBuilding:   {id: "BUILDING_BLOCKS", title: "Building Blocks", icon: "tab/building_blocks"},
	CategoryFunctional: {id: "FUNCTIONAL_BLOCKS", title: "Functional Blocks", icon: "tab/functional_blocks"},
	CategoryCosmetics:  {id: "COSMETICS", title: "Cosmetics", icon: "tab/cosmetics"},
	CategoryMobHeads:   {id: "MOBHEADS", title: "Mob Heads", icon: "tab/mobheads"},
	CategoryFood:       {id: "FOOD", title: "Food", icon: "tab/food"},
	CategoryMinigame:   {id: "MINIGAME_ITEMS", title: "Minigame Items", icon: "tab/minigame_items"},
	CategoryOther:      {id: "OTHER_ITEMS", title: "Other Items", icon: "tab/other_items"},
}

// Categories returns the tab order used by the creative screen: every real category, then All.
func Categories() []Category {
	return []Category{
		CategoryBuilding,
		CategoryFunctional,
		CategoryCosmetics,
		CategoryMobHeads,
		CategoryFood,
		CategoryMinigame,
		CategoryOther,
		CategoryAll,
	}
}

func (c Category) valid() bool { return c >= 0 && int(c) < len(categoryDefs) }

func (c Category) String() string {
	if !c.valid() {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryDefs[c].id
}

func (c Category) Title() string {
	if !c.valid() {
		return ""
	}
	return categoryDefs[c].title
}

func (c Category) Icon() string {
	if !c.valid() {
		return ""
	}
	return categoryDefs[c].icon
}

func ParseCategory(s string) (Category, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, d := range categoryDefs {
		if d.id == s {
			return Category(i), nil
		}
	}
	return CategoryAll, fmt.Errorf("unknown category %q", s)
}
