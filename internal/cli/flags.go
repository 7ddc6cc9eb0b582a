package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/mihovilrak/pm-sub004/pkg/models"
)

// granularityValue is a pflag.Value accepting day, week, or month.
type granularityValue models.Granularity

var _ pflag.Value = (*granularityValue)(nil)

func newGranularityValue(def models.Granularity, p *models.Granularity) *granularityValue {
	*p = def
	return (*granularityValue)(p)
}

func (g *granularityValue) String() string { return string(*g) }

func (g *granularityValue) Set(s string) error {
	v, err := models.ParseGranularity(s)
	if err != nil {
		return err
	}
	*g = granularityValue(v)
	return nil
}

func (g *granularityValue) Type() string { return "view" }

// normalizeCalendarFlags accepts the longer spellings of calendar flags.
func normalizeCalendarFlags(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	switch name {
	case "granularity":
		name = "view"
	case "on":
		name = "date"
	}
	return pflag.NormalizedName(name)
}

// parseReference resolves a --date value: empty or "today" is now, otherwise
// YYYY-MM-DD in loc.
func parseReference(s string, loc *time.Location, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "today") {
		return now.In(loc), nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD", s)
	}
	return t, nil
}
