// Package format renders statistic values for display.
package format

import (
	"strings"

	"github.com/dustin/go-humanize"
)

const (
	Default     = "default"
	DivideByTen = "divide_by_ten"
	Distance    = "distance"
	Time        = "time"
)

func decimal(f float64) string { return humanize.FormatFloat("#,###.##", f) }

// Value formats v with the named formatter. Unknown names use Default.
func Value(name string, v int) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case DivideByTen:
		return decimal(float64(v) / 10)
	case Distance:
		return distance(v)
	case Time:
		return duration(v)
	default:
		return humanize.Comma(int64(v))
	}
}

// distance takes centimetres.
func distance(cm int) string {
	m := float64(cm) / 100
	km := m / 1000
	switch {
	case km > 0.5:
		return decimal(km) + " km"
	case m > 0.5:
		return decimal(m) + " m"
	default:
		return humanize.Comma(int64(cm)) + " cm"
	}
}

// duration takes game ticks (20 per second).
func duration(ticks int) string {
	s := float64(ticks) / 20
	m := s / 60
	h := m / 60
	d := h / 24
	y := d / 365
	switch {
	case y > 0.5:
		return decimal(y) + " y"
	case d > 0.5:
		return decimal(d) + " d"
	case h > 0.5:
		return decimal(h) + " h"
	case m > 0.5:
		return decimal(m) + " m"
	default:
		return decimal(s) + " s"
	}
}
