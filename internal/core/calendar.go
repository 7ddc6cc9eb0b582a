package core

import (
	"fmt"
	"math"
	"time"

	"github.com/mihovilrak/pm-sub004/pkg/models"
)

const (
	monthGridDays = 42 // 6 rows of 7 days
	weekDays      = 7
	dayHours      = 24
)

// Default day-load thresholds, in hours.
const (
	DefaultModerateHours = 4.0
	DefaultHeavyHours    = 8.0
)

// LoadLevel classifies how much time was logged on a day.
type LoadLevel string

const (
	LoadNone     LoadLevel = "none"
	LoadLight    LoadLevel = "light"
	LoadModerate LoadLevel = "moderate"
	LoadHeavy    LoadLevel = "heavy"
)

// CalendarDay is one day bucket of a week or month view.
type CalendarDay struct {
	Date           time.Time        `json:"date"`
	IsCurrentMonth bool             `json:"is_current_month"`
	IsToday        bool             `json:"is_today"`
	IsWeekend      bool             `json:"is_weekend"`
	Tasks          []models.Task    `json:"tasks"`
	TimeLogs       []models.TimeLog `json:"time_logs"`
	TotalTime      float64          `json:"total_time"`
	Load           LoadLevel        `json:"load"`
}

// HourBucket is one hour-of-day bucket of the day view. Grouping uses the
// UTC hour and ignores the date.
type HourBucket struct {
	Hour      int              `json:"hour"`
	Tasks     []models.Task    `json:"tasks"`
	TimeLogs  []models.TimeLog `json:"time_logs"`
	TotalTime float64          `json:"total_time"`
}

// DateRange is a half-open [Start, End) interval.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// CalendarView is the full result for one granularity. Days is set for the
// week and month views, Hours for the day view.
type CalendarView struct {
	Granularity models.Granularity `json:"granularity"`
	Reference   time.Time          `json:"reference"`
	Range       DateRange          `json:"range"`
	Days        []CalendarDay      `json:"days,omitempty"`
	Hours       []HourBucket       `json:"hours,omitempty"`
	TotalTime   float64            `json:"total_time"`
}

// CalendarEngine buckets tasks and time logs into calendar views. It holds
// no state between calls and never mutates its inputs.
type CalendarEngine interface {
	MonthGrid(ref time.Time, tasks []models.Task, logs []models.TimeLog) []CalendarDay
	WeekGrid(ref time.Time, tasks []models.Task, logs []models.TimeLog) []CalendarDay
	HourBuckets(tasks []models.Task, logs []models.TimeLog) []HourBucket
	Grid(g models.Granularity, ref time.Time, tasks []models.Task, logs []models.TimeLog) CalendarView
	Range(ref time.Time, g models.Granularity) DateRange
	Shift(ref time.Time, g models.Granularity, delta int) time.Time
	LoadLevel(hours float64) LoadLevel
}

// CalendarOption customises a CalendarEngine.
type CalendarOption func(*calendarEngine)

// WithLocation sets the zone used for calendar-date comparisons.
func WithLocation(loc *time.Location) CalendarOption {
	return func(e *calendarEngine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithClock overrides the source of the current time used for IsToday.
func WithClock(now func() time.Time) CalendarOption {
	return func(e *calendarEngine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLoadThresholds sets the hour totals at which a day becomes moderate
// and heavy. Non-positive values keep the defaults.
func WithLoadThresholds(moderate, heavy float64) CalendarOption {
	return func(e *calendarEngine) {
		if moderate > 0 {
			e.moderateHours = moderate
		}
		if heavy > 0 {
			e.heavyHours = heavy
		}
	}
}

type calendarEngine struct {
	loc           *time.Location
	now           func() time.Time
	moderateHours float64
	heavyHours    float64
}

// NewCalendarEngine creates a CalendarEngine. Without options it compares
// dates in time.Local and uses time.Now for the today marker.
func NewCalendarEngine(opts ...CalendarOption) CalendarEngine {
	e := &calendarEngine{
		loc:           time.Local,
		now:           time.Now,
		moderateHours: DefaultModerateHours,
		heavyHours:    DefaultHeavyHours,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// dateKey identifies a calendar date independent of zone and clock time.
type dateKey struct {
	year  int
	month time.Month
	day   int
}

func keyOf(t time.Time) dateKey {
	y, m, d := t.Date()
	return dateKey{year: y, month: m, day: d}
}

// midnight returns the start of t's calendar day in the engine's zone.
func (e *calendarEngine) midnight(t time.Time) time.Time {
	y, m, d := t.In(e.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, e.loc)
}

// dayIndex groups tasks and time logs by local calendar date, keeping input
// order inside each date. A task lands on each distinct date among its
// start, end, and due dates exactly once.
type dayIndex struct {
	tasks map[dateKey][]models.Task
	logs  map[dateKey][]models.TimeLog
}

func (e *calendarEngine) indexByDay(tasks []models.Task, logs []models.TimeLog) dayIndex {
	idx := dayIndex{
		tasks: make(map[dateKey][]models.Task),
		logs:  make(map[dateKey][]models.TimeLog),
	}
	for _, t := range tasks {
		seen := make(map[dateKey]bool, 3)
		for _, d := range t.Dates() {
			k := keyOf(d.In(e.loc))
			if seen[k] {
				continue
			}
			seen[k] = true
			idx.tasks[k] = append(idx.tasks[k], t)
		}
	}
	for _, l := range logs {
		if l.CreatedOn.IsZero() {
			continue
		}
		k := keyOf(l.CreatedOn.In(e.loc))
		idx.logs[k] = append(idx.logs[k], l)
	}
	return idx
}

func (e *calendarEngine) buildDay(day time.Time, idx dayIndex) CalendarDay {
	k := keyOf(day)
	dayTasks := append(make([]models.Task, 0, len(idx.tasks[k])), idx.tasks[k]...)
	dayLogs := append(make([]models.TimeLog, 0, len(idx.logs[k])), idx.logs[k]...)
	total := SumSpentTime(dayLogs)
	wd := day.Weekday()
	return CalendarDay{
		Date:      day,
		IsWeekend: wd == time.Saturday || wd == time.Sunday,
		Tasks:     dayTasks,
		TimeLogs:  dayLogs,
		TotalTime: total,
		Load:      e.LoadLevel(total),
	}
}

func (e *calendarEngine) today() dateKey {
	return keyOf(e.now().In(e.loc))
}

// MonthGrid returns the 42-day grid containing ref's month: trailing days of
// the previous month back to the Sunday on or before the 1st, the month
// itself, then leading days of the next month. Padding days are never
// marked as today.
func (e *calendarEngine) MonthGrid(ref time.Time, tasks []models.Task, logs []models.TimeLog) []CalendarDay {
	local := ref.In(e.loc)
	year, month := local.Year(), local.Month()
	first := time.Date(year, month, 1, 0, 0, 0, 0, e.loc)
	start := first.AddDate(0, 0, -int(first.Weekday()))

	idx := e.indexByDay(tasks, logs)
	today := e.today()

	days := make([]CalendarDay, 0, monthGridDays)
	for i := 0; i < monthGridDays; i++ {
		d := e.buildDay(start.AddDate(0, 0, i), idx)
		d.IsCurrentMonth = d.Date.Year() == year && d.Date.Month() == month
		d.IsToday = d.IsCurrentMonth && keyOf(d.Date) == today
		days = append(days, d)
	}
	return days
}

// WeekGrid returns the seven days from the Sunday on or before ref through
// the following Saturday. IsCurrentMonth marks days in ref's month.
func (e *calendarEngine) WeekGrid(ref time.Time, tasks []models.Task, logs []models.TimeLog) []CalendarDay {
	day := e.midnight(ref)
	start := day.AddDate(0, 0, -int(day.Weekday()))

	idx := e.indexByDay(tasks, logs)
	today := e.today()

	days := make([]CalendarDay, 0, weekDays)
	for i := 0; i < weekDays; i++ {
		d := e.buildDay(start.AddDate(0, 0, i), idx)
		d.IsCurrentMonth = d.Date.Year() == day.Year() && d.Date.Month() == day.Month()
		d.IsToday = keyOf(d.Date) == today
		days = append(days, d)
	}
	return days
}

// HourBuckets groups tasks by the UTC hour of their start date and time logs
// by the UTC hour of their creation time, ignoring the date. Tasks without a
// start date and logs without a creation time are left out.
func (e *calendarEngine) HourBuckets(tasks []models.Task, logs []models.TimeLog) []HourBucket {
	buckets := make([]HourBucket, dayHours)
	for h := range buckets {
		buckets[h] = HourBucket{
			Hour:     h,
			Tasks:    make([]models.Task, 0),
			TimeLogs: make([]models.TimeLog, 0),
		}
	}
	for _, t := range tasks {
		if t.StartDate.IsZero() {
			continue
		}
		h := t.StartDate.UTC().Hour()
		buckets[h].Tasks = append(buckets[h].Tasks, t)
	}
	for _, l := range logs {
		if l.CreatedOn.IsZero() {
			continue
		}
		h := l.CreatedOn.UTC().Hour()
		buckets[h].TimeLogs = append(buckets[h].TimeLogs, l)
	}
	for h := range buckets {
		buckets[h].TotalTime = SumSpentTime(buckets[h].TimeLogs)
	}
	return buckets
}

// Grid computes the view for the given granularity. Unknown granularities
// fall back to the month view.
func (e *calendarEngine) Grid(g models.Granularity, ref time.Time, tasks []models.Task, logs []models.TimeLog) CalendarView {
	view := CalendarView{
		Granularity: g,
		Reference:   ref,
		Range:       e.Range(ref, g),
	}
	switch g {
	case models.GranularityDay:
		dayTasks, dayLogs := e.filterDay(ref, tasks, logs)
		view.Hours = e.HourBuckets(dayTasks, dayLogs)
		for _, b := range view.Hours {
			view.TotalTime += b.TotalTime
		}
	case models.GranularityWeek:
		view.Days = e.WeekGrid(ref, tasks, logs)
		for _, d := range view.Days {
			view.TotalTime += d.TotalTime
		}
	default:
		view.Granularity = models.GranularityMonth
		view.Days = e.MonthGrid(ref, tasks, logs)
		for _, d := range view.Days {
			if d.IsCurrentMonth {
				view.TotalTime += d.TotalTime
			}
		}
	}
	return view
}

// filterDay narrows the input to entries on ref's local date before hour
// bucketing, so the day view shows one day even though HourBuckets itself
// ignores dates.
func (e *calendarEngine) filterDay(ref time.Time, tasks []models.Task, logs []models.TimeLog) ([]models.Task, []models.TimeLog) {
	day := keyOf(ref.In(e.loc))
	var dayTasks []models.Task
	for _, t := range tasks {
		if !t.StartDate.IsZero() && keyOf(t.StartDate.In(e.loc)) == day {
			dayTasks = append(dayTasks, t)
		}
	}
	var dayLogs []models.TimeLog
	for _, l := range logs {
		if !l.CreatedOn.IsZero() && keyOf(l.CreatedOn.In(e.loc)) == day {
			dayLogs = append(dayLogs, l)
		}
	}
	return dayTasks, dayLogs
}

// Range returns the window of dates a view for ref covers. Callers use it
// to decide which tasks and time logs to fetch.
func (e *calendarEngine) Range(ref time.Time, g models.Granularity) DateRange {
	day := e.midnight(ref)
	switch g {
	case models.GranularityDay:
		return DateRange{Start: day, End: day.AddDate(0, 0, 1)}
	case models.GranularityWeek:
		start := day.AddDate(0, 0, -int(day.Weekday()))
		return DateRange{Start: start, End: start.AddDate(0, 0, weekDays)}
	default:
		first := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, e.loc)
		start := first.AddDate(0, 0, -int(first.Weekday()))
		return DateRange{Start: start, End: start.AddDate(0, 0, monthGridDays)}
	}
}

// Shift moves ref by delta views: days, weeks, or months. Month steps clamp
// the day to the target month's length, so Jan 31 + 1 month is Feb 28/29.
func (e *calendarEngine) Shift(ref time.Time, g models.Granularity, delta int) time.Time {
	switch g {
	case models.GranularityDay:
		return ref.AddDate(0, 0, delta)
	case models.GranularityWeek:
		return ref.AddDate(0, 0, weekDays*delta)
	default:
		y, m, d := ref.Date()
		target := time.Date(y, m+time.Month(delta), 1, 0, 0, 0, 0, ref.Location())
		if last := DaysInMonth(target); d > last {
			d = last
		}
		return time.Date(target.Year(), target.Month(), d,
			ref.Hour(), ref.Minute(), ref.Second(), ref.Nanosecond(), ref.Location())
	}
}

// LoadLevel classifies a day's logged hours.
func (e *calendarEngine) LoadLevel(hours float64) LoadLevel {
	switch {
	case hours <= 0 || math.IsNaN(hours):
		return LoadNone
	case hours < e.moderateHours:
		return LoadLight
	case hours < e.heavyHours:
		return LoadModerate
	default:
		return LoadHeavy
	}
}

// DaysInMonth returns the number of days in t's month.
func DaysInMonth(t time.Time) int {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return first.AddDate(0, 1, -1).Day()
}

// SumSpentTime adds up the spent time of logs. Invalid values count as 0.
func SumSpentTime(logs []models.TimeLog) float64 {
	total := 0.0
	for _, l := range logs {
		total += l.SpentTime.Float()
	}
	return total
}

// FormatHours renders hours as "Xh Ym". Non-finite input renders as "0h 0m".
func FormatHours(hours float64) string {
	if math.IsNaN(hours) || math.IsInf(hours, 0) {
		return "0h 0m"
	}
	whole := math.Floor(hours)
	minutes := math.Round((hours - whole) * 60)
	if minutes >= 60 {
		whole++
		minutes -= 60
	}
	return fmt.Sprintf("%dh %dm", int(whole), int(minutes))
}
