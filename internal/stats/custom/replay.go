package custom

import (
	"fmt"
	"sort"
	"strings"
)

// Replay rebuilds a store from an audit trail that starts at an empty store. Entries are
// applied without permission checks; the trail only holds operations that already passed them.
func Replay(entries []AuditEntry, opts Options) (*Store, error) {
	opts.Audit = nil
	s := NewStore(opts)
	for i, e := range entries {
		if err := s.replayOne(e); err != nil {
			return s, fmt.Errorf("audit entry %d (%s %s): %w", i, e.Op, e.Key, err)
		}
	}
	return s, nil
}

func (s *Store) replayOne(e AuditEntry) error {
	switch Op(e.Op) {
	case OpCreate:
		res, err := s.Create(e.Key, detailString(e.Details, "display_name"), e.Actor)
		if err != nil {
			return err
		}
		if res == AlreadyExists {
			return fmt.Errorf("%w: %s", ErrExists, e.Key)
		}
		return nil
	case OpDelete:
		if s.Delete(e.Key) == NotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, e.Key)
		}
		return nil
	case OpRename:
		return s.Rename(e.Key, detailString(e.Details, "display_name"))
	case OpDisplay:
		return s.SetDisplayEntry(e.Key, detailString(e.Details, "entry"))
	case OpAddMaintainer:
		return s.AddMaintainer(e.Key, detailString(e.Details, "target"))
	case OpRemoveMaintainer:
		return s.RemoveMaintainer(e.Key, detailString(e.Details, "target"))
	case OpSetScore:
		return s.SetScore(e.Key, detailString(e.Details, "target"), detailInt(e.Details, "value"))
	case OpAddScore:
		_, err := s.AddScore(e.Key, detailString(e.Details, "target"), detailInt(e.Details, "value"))
		return err
	}
	return fmt.Errorf("%w: unknown op %q", ErrBadRequest, e.Op)
}

func detailString(d map[string]any, k string) string {
	v, _ := d[k].(string)
	return v
}

// detailInt accepts ints from memory and float64 from decoded JSON.
func detailInt(d map[string]any, k string) int {
	switch v := d[k].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case int64:
		return int(v)
	}
	return 0
}

// Diff lists human-readable differences between two stores, sorted by key.
func Diff(a, b *Store) []string {
	as, bs := map[string]Statistic{}, map[string]Statistic{}
	for _, st := range a.List() {
		as[st.Key] = st
	}
	for _, st := range b.List() {
		bs[st.Key] = st
	}
	var out []string
	for k, x := range as {
		y, ok := bs[k]
		if !ok {
			out = append(out, k+": only in first")
			continue
		}
		if x.DisplayName != y.DisplayName {
			out = append(out, fmt.Sprintf("%s: display name %q != %q", k, x.DisplayName, y.DisplayName))
		}
		if x.DisplayEntry != y.DisplayEntry {
			out = append(out, fmt.Sprintf("%s: display entry %q != %q", k, x.DisplayEntry, y.DisplayEntry))
		}
		if x.Owner != y.Owner {
			out = append(out, fmt.Sprintf("%s: owner %q != %q", k, x.Owner, y.Owner))
		}
		if strings.Join(x.Maintainers, ",") != strings.Join(y.Maintainers, ",") {
			out = append(out, fmt.Sprintf("%s: maintainers %v != %v", k, x.Maintainers, y.Maintainers))
		}
		users := map[string]struct{}{}
		for u := range x.Scores {
			users[u] = struct{}{}
		}
		for u := range y.Scores {
			users[u] = struct{}{}
		}
		for u := range users {
			if x.Scores[u] != y.Scores[u] {
				out = append(out, fmt.Sprintf("%s: score of %s %d != %d", k, u, x.Scores[u], y.Scores[u]))
			}
		}
	}
	for k := range bs {
		if _, ok := as[k]; !ok {
			out = append(out, k+": only in second")
		}
	}
	sort.Strings(out)
	return out
}
