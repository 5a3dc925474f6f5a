package custom

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"

	"topper.blackblock.rocks/internal/permissions"
)

type Op string

const (
	OpCreate           Op = "create"
	OpDelete           Op = "delete"
	OpRename           Op = "rename"
	OpDisplay          Op = "display"
	OpAddMaintainer    Op = "add_maintainer"
	OpRemoveMaintainer Op = "remove_maintainer"
	OpSetScore         Op = "set_score"
	OpAddScore         Op = "add_score"
	OpGet              Op = "get"
	OpList             Op = "list"
)

// Request is one management command issued by a user.
type Request struct {
	Op     Op
	Key    string
	Name   string
	Target string
	Value  int
	Scope  Scope
	Entry  string
}

type Reply struct {
	Message    string
	Statistics []Statistic
}

// maxSuggestDistance bounds how far a typo may be from a known key.
const maxSuggestDistance = 3

// Suggest returns the stored key closest to key, or "" if none is near enough.
func (s *Store) Suggest(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return ""
	}
	best, bestDist := "", maxSuggestDistance+1
	for _, k := range s.Keys() {
		d := levenshtein.ComputeDistance(key, k)
		if d < bestDist {
			best, bestDist = k, d
		}
	}
	return best
}

func (s *Store) notFound(key string) error {
	if hint := s.Suggest(key); hint != "" {
		return fmt.Errorf("%w: %s (did you mean %s?)", ErrNotFound, key, hint)
	}
	return fmt.Errorf("%w: %s", ErrNotFound, key)
}

// Apply runs req on behalf of actor after the ownership checks. Successful mutations are
// written to the audit sink.
func (s *Store) Apply(actor string, req Request, perms permissions.Checker) (Reply, error) {
	switch req.Op {
	case OpList:
		return Reply{Statistics: s.ListVisibleTo(actor, req.Scope, perms)}, nil
	case OpCreate:
		if actor == "" {
			return Reply{}, fmt.Errorf("%w: anonymous create", ErrNoPermission)
		}
		res, err := s.Create(req.Key, req.Name, actor)
		if err != nil {
			return Reply{}, err
		}
		if res == AlreadyExists {
			return Reply{}, fmt.Errorf("%w: %s", ErrExists, strings.ToLower(strings.TrimSpace(req.Key)))
		}
		st, _ := s.Get(req.Key)
		s.writeAudit(string(req.Op), actor, st.Key, map[string]any{"display_name": st.DisplayName})
		return Reply{Message: "Created statistic " + st.QualifiedKey(), Statistics: []Statistic{st}}, nil
	}

	if _, err := NormalizeKey(req.Key); err != nil {
		return Reply{}, err
	}
	st, ok := s.Get(req.Key)
	if !ok {
		return Reply{}, s.notFound(req.Key)
	}

	var (
		err     error
		msg     string
		details map[string]any
	)
	switch req.Op {
	case OpGet:
		return Reply{Statistics: []Statistic{st}}, nil
	case OpDelete:
		if !CanManage(st, actor, perms) {
			return Reply{}, fmt.Errorf("%w: %s", ErrNoPermission, st.Key)
		}
		if s.Delete(st.Key) == NotFound {
			return Reply{}, s.notFound(st.Key)
		}
		s.writeAudit(string(req.Op), actor, st.Key, nil)
		return Reply{Message: "Deleted statistic " + st.QualifiedKey()}, nil
	case OpRename:
		if !CanManage(st, actor, perms) {
			return Reply{}, fmt.Errorf("%w: %s", ErrNoPermission, st.Key)
		}
		err = s.Rename(st.Key, req.Name)
		msg = "Renamed " + st.QualifiedKey() + " to " + req.Name
		details = map[string]any{"display_name": req.Name}
	case OpDisplay:
		if !CanManage(st, actor, perms) {
			return Reply{}, fmt.Errorf("%w: %s", ErrNoPermission, st.Key)
		}
		err = s.SetDisplayEntry(st.Key, req.Entry)
		msg = "Display entry of " + st.QualifiedKey() + " set to " + req.Entry
		details = map[string]any{"entry": req.Entry}
	case OpAddMaintainer, OpRemoveMaintainer:
		if !CanManage(st, actor, perms) {
			return Reply{}, fmt.Errorf("%w: %s", ErrNoPermission, st.Key)
		}
		if req.Op == OpAddMaintainer {
			err = s.AddMaintainer(st.Key, req.Target)
			msg = req.Target + " now maintains " + st.QualifiedKey()
		} else {
			err = s.RemoveMaintainer(st.Key, req.Target)
			msg = req.Target + " no longer maintains " + st.QualifiedKey()
		}
		details = map[string]any{"target": req.Target}
	case OpSetScore, OpAddScore:
		if !CanScore(st, actor, perms) {
			return Reply{}, fmt.Errorf("%w: %s", ErrNoPermission, st.Key)
		}
		target := req.Target
		if target == "" {
			target = actor
		}
		v := req.Value
		if req.Op == OpSetScore {
			err = s.SetScore(st.Key, target, v)
		} else {
			v, err = s.AddScore(st.Key, target, req.Value)
		}
		msg = fmt.Sprintf("%s of %s is now %d", st.QualifiedKey(), target, v)
		details = map[string]any{"target": target, "value": req.Value}
	default:
		return Reply{}, fmt.Errorf("%w: unknown op %q", ErrBadRequest, req.Op)
	}
	if err != nil {
		return Reply{}, err
	}
	s.writeAudit(string(req.Op), actor, st.Key, details)
	st, _ = s.Get(st.Key)
	return Reply{Message: msg, Statistics: []Statistic{st}}, nil
}
