// Package custom holds the registry of player-defined statistics. Records are few and small,
// so the whole collection lives in memory and is persisted as one document.
package custom

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"topper.blackblock.rocks/internal/permissions"
	"topper.blackblock.rocks/internal/persistence/snapshot"
)

// Namespace qualifies every custom statistic key.
const Namespace = "bbstats"

var (
	ErrInvalidKey     = errors.New("invalid statistic key")
	ErrAlreadyLoaded  = errors.New("statistics already loaded")
	ErrNotFound       = errors.New("statistic not found")
	ErrExists         = errors.New("statistic already exists")
	ErrNoPermission   = errors.New("not allowed")
	ErrBadRequest     = errors.New("bad request")
	keyPattern        = regexp.MustCompile(`^[a-z0-9_.-]+$`)
	errEmptyDisplay   = fmt.Errorf("%w: empty display name", ErrBadRequest)
	errEmptyTargetArg = fmt.Errorf("%w: missing target", ErrBadRequest)
)

type Result int

const (
	Created Result = iota
	AlreadyExists
	Deleted
	NotFound
	// Invalid accompanies ErrInvalidKey.
	Invalid
)

func (r Result) String() string {
	switch r {
	case Created:
		return "created"
	case AlreadyExists:
		return "already_exists"
	case Deleted:
		return "deleted"
	case NotFound:
		return "not_found"
	case Invalid:
		return "invalid"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

type Scope int

const (
	ScopeAll Scope = iota
	ScopeOwned
	ScopeMaintained
)

func (s Scope) String() string {
	switch s {
	case ScopeOwned:
		return "owns"
	case ScopeMaintained:
		return "maintains"
	default:
		return "all"
	}
}

func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return ScopeAll, nil
	case "owns", "owned":
		return ScopeOwned, nil
	case "maintains", "maintained":
		return ScopeMaintained, nil
	}
	return ScopeAll, fmt.Errorf("%w: unknown scope %q", ErrBadRequest, s)
}

// NormalizeKey lowercases k and checks it against the allowed key alphabet.
func NormalizeKey(k string) (string, error) {
	k = strings.ToLower(strings.TrimSpace(k))
	k = strings.TrimPrefix(k, Namespace+":")
	if !keyPattern.MatchString(k) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, k)
	}
	return k, nil
}

// Statistic is a detached copy of a stored record.
type Statistic struct {
	Key          string
	DisplayName  string
	Owner        string
	Maintainers  []string
	Scores       map[string]int
	DisplayEntry string
}

func (s Statistic) QualifiedKey() string { return Namespace + ":" + s.Key }

func (s Statistic) Score(user string) int { return s.Scores[user] }

func (s Statistic) IsMaintainer(user string) bool {
	for _, m := range s.Maintainers {
		if m == user {
			return true
		}
	}
	return false
}

type record struct {
	key          string
	displayName  string
	owner        string
	maintainers  map[string]struct{}
	scores       map[string]int
	displayEntry string
}

func (r *record) copy() Statistic {
	ms := make([]string, 0, len(r.maintainers))
	for m := range r.maintainers {
		ms = append(ms, m)
	}
	sort.Strings(ms)
	sc := make(map[string]int, len(r.scores))
	for u, v := range r.scores {
		sc[u] = v
	}
	return Statistic{
		Key:          r.key,
		DisplayName:  r.displayName,
		Owner:        r.owner,
		Maintainers:  ms,
		Scores:       sc,
		DisplayEntry: r.displayEntry,
	}
}

// Persister loads and stores the whole collection.
type Persister interface {
	ReadSnapshot() (snapshot.StatisticsV1, error)
	WriteSnapshot(snapshot.StatisticsV1) error
}

type AuditEntry struct {
	Time    string         `json:"time"`
	Op      string         `json:"op"`
	Actor   string         `json:"actor,omitempty"`
	Key     string         `json:"key"`
	Details map[string]any `json:"details,omitempty"`
}

type AuditSink interface {
	WriteAudit(AuditEntry) error
}

// Store is the in-memory statistic registry for one world. Every method is safe for
// concurrent use; reads hand out deep copies.
type Store struct {
	mu      sync.RWMutex
	records map[string]*record
	dirty   bool
	loaded  bool
	worldID string

	defaultEntry string
	audit        AuditSink
}

type Options struct {
	WorldID string
	// DefaultDisplayEntry is assigned to new statistics.
	DefaultDisplayEntry string
	Audit               AuditSink
}

func NewStore(opts Options) *Store {
	return &Store{
		records:      map[string]*record{},
		worldID:      opts.WorldID,
		defaultEntry: opts.DefaultDisplayEntry,
		audit:        opts.Audit,
	}
}

func (s *Store) Create(key, displayName, owner string) (Result, error) {
	k, err := NormalizeKey(key)
	if err != nil {
		return Invalid, err
	}
	if strings.TrimSpace(displayName) == "" {
		displayName = k
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[k]; ok {
		return AlreadyExists, nil
	}
	s.records[k] = &record{
		key:          k,
		displayName:  displayName,
		owner:        owner,
		maintainers:  map[string]struct{}{},
		scores:       map[string]int{},
		displayEntry: s.defaultEntry,
	}
	s.dirty = true
	return Created, nil
}

func (s *Store) Delete(key string) Result {
	k, err := NormalizeKey(key)
	if err != nil {
		return NotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[k]; !ok {
		return NotFound
	}
	delete(s.records, k)
	s.dirty = true
	return Deleted
}

func (s *Store) Get(key string) (Statistic, bool) {
	k, err := NormalizeKey(key)
	if err != nil {
		return Statistic{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[k]
	if !ok {
		return Statistic{}, false
	}
	return r.copy(), true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// List returns every record ordered by key.
func (s *Store) List() []Statistic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectLocked(func(*record) bool { return true })
}

// ListVisibleTo applies the ownership scope for user. Elevated users and ScopeAll see
// everything; an empty user sees nothing.
func (s *Store) ListVisibleTo(user string, scope Scope, perms permissions.Checker) []Statistic {
	if scope == ScopeAll || (perms != nil && perms.Elevated(user)) {
		return s.List()
	}
	if user == "" {
		return []Statistic{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch scope {
	case ScopeOwned:
		return s.collectLocked(func(r *record) bool { return r.owner == user })
	case ScopeMaintained:
		return s.collectLocked(func(r *record) bool {
			_, ok := r.maintainers[user]
			return ok
		})
	}
	return []Statistic{}
}

func (s *Store) collectLocked(keep func(*record) bool) []Statistic {
	keys := make([]string, 0, len(s.records))
	for k, r := range s.records {
		if keep(r) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]Statistic, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.records[k].copy())
	}
	return out
}

// Keys returns all keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) mutate(key string, fn func(r *record) error) error {
	k, err := NormalizeKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[k]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, k)
	}
	if err := fn(r); err != nil {
		return err
	}
	s.dirty = true
	return nil
}

func (s *Store) Rename(key, displayName string) error {
	if strings.TrimSpace(displayName) == "" {
		return errEmptyDisplay
	}
	return s.mutate(key, func(r *record) error {
		r.displayName = displayName
		return nil
	})
}

func (s *Store) SetDisplayEntry(key, entryID string) error {
	return s.mutate(key, func(r *record) error {
		r.displayEntry = entryID
		return nil
	})
}

func (s *Store) AddMaintainer(key, user string) error {
	if user == "" {
		return errEmptyTargetArg
	}
	return s.mutate(key, func(r *record) error {
		r.maintainers[user] = struct{}{}
		return nil
	})
}

func (s *Store) RemoveMaintainer(key, user string) error {
	if user == "" {
		return errEmptyTargetArg
	}
	return s.mutate(key, func(r *record) error {
		delete(r.maintainers, user)
		return nil
	})
}

func (s *Store) SetScore(key, user string, v int) error {
	if user == "" {
		return errEmptyTargetArg
	}
	return s.mutate(key, func(r *record) error {
		r.scores[user] = v
		return nil
	})
}

// AddScore adds delta to user's score and returns the new value.
func (s *Store) AddScore(key, user string, delta int) (int, error) {
	if user == "" {
		return 0, errEmptyTargetArg
	}
	var out int
	err := s.mutate(key, func(r *record) error {
		r.scores[user] += delta
		out = r.scores[user]
		return nil
	})
	return out, err
}

// CanManage reports whether user may delete, rename or reassign the statistic.
func CanManage(st Statistic, user string, perms permissions.Checker) bool {
	if user == "" {
		return false
	}
	return st.Owner == user || (perms != nil && perms.Elevated(user))
}

// CanScore additionally admits maintainers.
func CanScore(st Statistic, user string, perms permissions.Checker) bool {
	return CanManage(st, user, perms) || (user != "" && st.IsMaintainer(user))
}

func (s *Store) IsDirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

func (s *Store) MarkDirty() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

func (s *Store) ClearDirty() {
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
}

// Export builds the persisted document for the current collection.
func (s *Store) Export() snapshot.StatisticsV1 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exportLocked()
}

func (s *Store) exportLocked() snapshot.StatisticsV1 {
	doc := snapshot.StatisticsV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: s.worldID,
			SavedAt: time.Now().UTC().Format(time.RFC3339Nano),
		},
	}
	for _, st := range s.collectLocked(func(*record) bool { return true }) {
		b, err := json.Marshal(snapshot.StatisticV1{
			Key:          st.Key,
			DisplayName:  st.DisplayName,
			Owner:        st.Owner,
			Maintainers:  st.Maintainers,
			Scores:       st.Scores,
			DisplayEntry: st.DisplayEntry,
		})
		if err != nil {
			continue
		}
		doc.Records = append(doc.Records, b)
	}
	doc.Header.Records = len(doc.Records)
	return doc
}

// Flush exports and clears the dirty flag in one step. ok is false when nothing changed
// since the last flush.
func (s *Store) Flush() (snapshot.StatisticsV1, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return snapshot.StatisticsV1{}, false
	}
	doc := s.exportLocked()
	s.dirty = false
	return doc, true
}

// Import loads a persisted document into an empty store. It may run once; malformed,
// keyless and duplicate records are skipped and counted.
func (s *Store) Import(doc snapshot.StatisticsV1) (loaded, skipped int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return 0, 0, ErrAlreadyLoaded
	}
	s.loaded = true
	for _, raw := range doc.Records {
		var rec snapshot.StatisticV1
		if err := json.Unmarshal(raw, &rec); err != nil {
			skipped++
			continue
		}
		k, err := NormalizeKey(rec.Key)
		if err != nil {
			skipped++
			continue
		}
		if _, dup := s.records[k]; dup {
			skipped++
			continue
		}
		r := &record{
			key:          k,
			displayName:  rec.DisplayName,
			owner:        rec.Owner,
			maintainers:  make(map[string]struct{}, len(rec.Maintainers)),
			scores:       make(map[string]int, len(rec.Scores)),
			displayEntry: rec.DisplayEntry,
		}
		if r.displayName == "" {
			r.displayName = k
		}
		for _, m := range rec.Maintainers {
			if m != "" {
				r.maintainers[m] = struct{}{}
			}
		}
		for u, v := range rec.Scores {
			if u != "" {
				r.scores[u] = v
			}
		}
		s.records[k] = r
		loaded++
	}
	return loaded, skipped, nil
}

// Load reads p and imports its document.
func (s *Store) Load(p Persister) (loaded, skipped int, err error) {
	doc, err := p.ReadSnapshot()
	if err != nil {
		return 0, 0, err
	}
	return s.Import(doc)
}

// Save flushes and writes through p. A failed write marks the store dirty again.
func (s *Store) Save(p Persister) (bool, error) {
	doc, ok := s.Flush()
	if !ok {
		return false, nil
	}
	if err := p.WriteSnapshot(doc); err != nil {
		s.MarkDirty()
		return false, err
	}
	return true, nil
}

func (s *Store) writeAudit(op, actor, key string, details map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.WriteAudit(AuditEntry{
		Time:    time.Now().UTC().Format(time.RFC3339Nano),
		Op:      op,
		Actor:   actor,
		Key:     key,
		Details: details,
	})
}
