package counters

import (
	"fmt"
	"strings"
	"sync"
)

// Type is a built-in per-user counter kept for every catalog entry.
type Type int

const (
	None Type = iota
	Mined
	Crafted
	Used
	Broken
	PickedUp
	Dropped
)

var typeNames = [...]string{
	None:     "none",
	Mined:    "mined",
	Crafted:  "crafted",
	Used:     "used",
	Broken:   "broken",
	PickedUp: "picked_up",
	Dropped:  "dropped",
}

var typeLabels = [...]string{
	None:     "",
	Mined:    "Times Mined",
	Crafted:  "Times Crafted",
	Used:     "Times Used",
	Broken:   "Times Broken",
	PickedUp: "Picked Up",
	Dropped:  "Dropped",
}

// All lists the per-entry counters in display order.
func All() []Type {
	return []Type{Mined, Crafted, Used, Broken, PickedUp, Dropped}
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

func (t Type) Label() string {
	if t < 0 || int(t) >= len(typeLabels) {
		return ""
	}
	return typeLabels[t]
}

func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range typeNames {
		if i != int(None) && n == s {
			return Type(i), nil
		}
	}
	return None, fmt.Errorf("unknown counter %q", s)
}

// Source answers built-in counter values for a user. Unknown users and missing counters
// read as zero.
type Source interface {
	Count(user string, t Type, entryID string) int
	General(user string, statID string) int
}

type entryKey struct {
	t       Type
	entryID string
}

type userBook struct {
	entries map[entryKey]int
	general map[string]int
}

// Book is an in-memory Source fed by the host through the admin API.
type Book struct {
	mu    sync.RWMutex
	users map[string]*userBook
}

func NewBook() *Book {
	return &Book{users: map[string]*userBook{}}
}

func (b *Book) user(name string) *userBook {
	u := b.users[name]
	if u == nil {
		u = &userBook{entries: map[entryKey]int{}, general: map[string]int{}}
		b.users[name] = u
	}
	return u
}

func (b *Book) Count(user string, t Type, entryID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	u := b.users[user]
	if u == nil {
		return 0
	}
	return u.entries[entryKey{t: t, entryID: entryID}]
}

func (b *Book) General(user string, statID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	u := b.users[user]
	if u == nil {
		return 0
	}
	return u.general[statID]
}

func (b *Book) SetCount(user string, t Type, entryID string, v int) {
	if user == "" || t == None || entryID == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.user(user).entries[entryKey{t: t, entryID: entryID}] = v
}

func (b *Book) AddCount(user string, t Type, entryID string, delta int) {
	if user == "" || t == None || entryID == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.user(user).entries[entryKey{t: t, entryID: entryID}] += delta
}

func (b *Book) SetGeneral(user string, statID string, v int) {
	if user == "" || statID == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.user(user).general[statID] = v
}
