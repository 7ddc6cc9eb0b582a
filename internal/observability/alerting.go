package observability

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cast"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert is a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts fire. Counts are taken over the
// trailing WindowHours.
type AlertThresholds struct {
	WindowHours      int `yaml:"window_hours" json:"window_hours"`
	MaxLoadFailures  int `yaml:"max_load_failures" json:"max_load_failures"`
	RepeatedFailures int `yaml:"repeated_failures" json:"repeated_failures"`
	MaxHeavyDays     int `yaml:"max_heavy_days" json:"max_heavy_days"`
}

// DefaultAlertThresholds returns the thresholds used when none are configured.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		WindowHours:      24,
		MaxLoadFailures:  5,
		RepeatedFailures: 3,
		MaxHeavyDays:     8,
	}
}

// AlertEngine evaluates alert conditions against the event log.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

type alertEngine struct {
	eventLog   EventLog
	thresholds AlertThresholds
	now        func() time.Time
}

// NewAlertEngine creates an AlertEngine over eventLog.
func NewAlertEngine(eventLog EventLog, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{eventLog: eventLog, thresholds: thresholds, now: time.Now}
}

// Evaluate reads the window's events and returns alerts ordered by severity
// then ID.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	now := ae.now().UTC()
	since := now.Add(-time.Duration(ae.thresholds.WindowHours) * time.Hour)

	failures, err := ae.eventLog.Read(EventFilter{Since: &since, Type: TypeTreeError})
	if err != nil {
		return nil, fmt.Errorf("reading tree errors: %w", err)
	}
	renders, err := ae.eventLog.Read(EventFilter{Since: &since, Type: TypeCalendarRendered})
	if err != nil {
		return nil, fmt.Errorf("reading calendar events: %w", err)
	}

	var alerts []Alert
	alerts = append(alerts, ae.checkLoadFailures(now, failures)...)
	alerts = append(alerts, ae.checkRepeatedFailures(now, failures)...)
	alerts = append(alerts, ae.checkOverload(now, renders)...)

	sort.SliceStable(alerts, func(i, j int) bool {
		ri, rj := severityRank(alerts[i].Severity), severityRank(alerts[j].Severity)
		if ri != rj {
			return ri < rj
		}
		return alerts[i].ID < alerts[j].ID
	})
	return alerts, nil
}

func (ae *alertEngine) checkLoadFailures(now time.Time, failures []Event) []Alert {
	count := 0
	for _, e := range failures {
		if op, _ := e.Data["op"].(string); op != "delete" {
			count++
		}
	}
	if count <= ae.thresholds.MaxLoadFailures {
		return nil
	}
	return []Alert{{
		ID:          "load-failures",
		Condition:   "load_failures_spike",
		Severity:    SeverityHigh,
		Message:     fmt.Sprintf("%d subtask loads failed in the last %d hours (limit %d)", count, ae.thresholds.WindowHours, ae.thresholds.MaxLoadFailures),
		TriggeredAt: now,
	}}
}

func (ae *alertEngine) checkRepeatedFailures(now time.Time, failures []Event) []Alert {
	perTask := make(map[int64]int)
	for _, e := range failures {
		raw, ok := e.Data["task_id"]
		if !ok {
			continue
		}
		id, err := cast.ToInt64E(raw)
		if err != nil {
			continue
		}
		perTask[id]++
	}

	var alerts []Alert
	for id, n := range perTask {
		if n < ae.thresholds.RepeatedFailures {
			continue
		}
		alerts = append(alerts, Alert{
			ID:          fmt.Sprintf("failing-%d", id),
			Condition:   "task_failing_repeatedly",
			Severity:    SeverityMedium,
			Message:     fmt.Sprintf("task %d failed %d times in the last %d hours", id, n, ae.thresholds.WindowHours),
			TriggeredAt: now,
		})
	}
	return alerts
}

// checkOverload looks at the most recent month view only.
func (ae *alertEngine) checkOverload(now time.Time, renders []Event) []Alert {
	var latest *Event
	for i := range renders {
		if cast.ToString(renders[i].Data["granularity"]) != "month" {
			continue
		}
		if latest == nil || !renders[i].Time.Before(latest.Time) {
			latest = &renders[i]
		}
	}
	if latest == nil {
		return nil
	}
	heavy := cast.ToInt(latest.Data["heavy_days"])
	if heavy <= ae.thresholds.MaxHeavyDays {
		return nil
	}
	return []Alert{{
		ID:          "overloaded-month",
		Condition:   "calendar_overloaded",
		Severity:    SeverityLow,
		Message:     fmt.Sprintf("%v has %d heavy days (limit %d)", latest.Data["reference"], heavy, ae.thresholds.MaxHeavyDays),
		TriggeredAt: now,
	}}
}

func severityRank(s AlertSeverity) int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	default:
		return 2
	}
}
