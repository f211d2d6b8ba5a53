package content

import (
	"strings"
	"time"
)

// Epoch is the date of items whose date is missing or unparseable: they sort last.
var Epoch = time.Unix(0, 0).UTC()

var (
	dayFirstLayouts  = []string{"2-1-2006 15:04:05", "2-1-2006 15:04"}
	yearFirstLayouts = []string{"2006-1-2 15:04:05", "2006-1-2 15:04"}
)

// ParseDate reads "DD-MM-YYYY[ HH:MM:SS]" or "YYYY-MM-DD[ HH:MM:SS]".
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return Epoch
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}

	parts := strings.Fields(s)
	datePart, timePart := parts[0], "00:00:00"
	if len(parts) > 1 {
		timePart = parts[1]
	}
	value := datePart + " " + timePart

	layouts := yearFirstLayouts
	if segs := strings.SplitN(datePart, "-", 2); len(segs) == 2 && len(segs[0]) <= 2 {
		layouts = dayFirstLayouts
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return Epoch
}
