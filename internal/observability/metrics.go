package observability

import (
	"fmt"
	"time"

	"github.com/spf13/cast"
)

// Metrics summarises task tree and calendar activity.
type Metrics struct {
	EventCount      int            `json:"event_count"`
	SubtreeLoads    int            `json:"subtree_loads"`
	SubtasksFetched int            `json:"subtasks_fetched"`
	LoadFailures    int            `json:"load_failures"`
	Deletions       int            `json:"deletions"`
	DeleteFailures  int            `json:"delete_failures"`
	CalendarViews   map[string]int `json:"calendar_views"`
	OldestEvent     *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent     *time.Time     `json:"newest_event,omitempty"`
}

// FailureRate is the share of child loads that failed, in [0, 1].
func (m *Metrics) FailureRate() float64 {
	attempts := m.SubtreeLoads + m.LoadFailures
	if attempts == 0 {
		return 0
	}
	return float64(m.LoadFailures) / float64(attempts)
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a MetricsCalculator reading from eventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate aggregates every event at or after since.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		EventCount:    len(events),
		CalendarViews: make(map[string]int),
	}
	for _, event := range events {
		t := event.Time
		if m.OldestEvent == nil || t.Before(*m.OldestEvent) {
			m.OldestEvent = &t
		}
		if m.NewestEvent == nil || t.After(*m.NewestEvent) {
			m.NewestEvent = &t
		}

		switch event.Type {
		case TypeChildrenLoaded:
			m.SubtreeLoads++
			// Numbers read back from JSON are float64.
			m.SubtasksFetched += cast.ToInt(event.Data["children"])
		case TypeTaskDeleted:
			m.Deletions++
		case TypeTreeError:
			if op, _ := event.Data["op"].(string); op == "delete" {
				m.DeleteFailures++
			} else {
				m.LoadFailures++
			}
		case TypeCalendarRendered:
			if g := cast.ToString(event.Data["granularity"]); g != "" {
				m.CalendarViews[g]++
			}
		}
	}
	return m, nil
}
