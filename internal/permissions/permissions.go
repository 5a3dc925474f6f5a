package permissions

import "strings"

// ElevatedLevel is the lowest operator level that sees every custom statistic.
const ElevatedLevel = 1

type Checker interface {
	Elevated(user string) bool
}

// Levels is a static user -> operator level table (from config).
type Levels map[string]int

func (l Levels) Level(user string) int {
	if user == "" {
		return 0
	}
	if v, ok := l[user]; ok {
		return v
	}
	return l[strings.ToLower(user)]
}

func (l Levels) Elevated(user string) bool { return l.Level(user) >= ElevatedLevel }

// Nobody denies elevation to everyone.
type Nobody struct{}

func (Nobody) Elevated(string) bool { return false }
