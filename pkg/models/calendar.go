package models

import (
	"fmt"
	"strings"
)

// Granularity selects the bucket size of a calendar view.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// ParseGranularity converts a user-supplied view name into a Granularity.
// The empty string selects the month view.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(strings.ToLower(strings.TrimSpace(s))) {
	case "", GranularityMonth:
		return GranularityMonth, nil
	case GranularityWeek:
		return GranularityWeek, nil
	case GranularityDay:
		return GranularityDay, nil
	default:
		return "", fmt.Errorf("invalid view %q: must be one of day, week, month", s)
	}
}
