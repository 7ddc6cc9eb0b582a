package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/mihovilrak/pm-sub004/internal/core"
	"github.com/mihovilrak/pm-sub004/internal/observability"
	"github.com/mihovilrak/pm-sub004/pkg/models"
)

var (
	calendarView  models.Granularity
	calendarDate  string
	calendarShift int
	calendarJSON  bool
)

var calendarCmd = &cobra.Command{
	Use:     "calendar",
	Aliases: []string{"cal"},
	Short:   "Show tasks and time logs on a calendar",
	Long: `Bucket tasks and time logs into a calendar view.

The month view is a 6x7 grid starting on the Sunday on or before the 1st,
the week view is Sunday to Saturday, and the day view has one row per hour.
Each day is shaded by the hours logged on it.`,
	Example: `  pmcal calendar
  pmcal calendar --view week --date 2024-01-10
  pmcal cal --view month --shift -1 --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Workspace == nil || Calendar == nil {
			return fmt.Errorf("workspace not initialized")
		}

		ref, err := parseReference(calendarDate, calendarLocation(), nowFunc())
		if err != nil {
			return fmt.Errorf("parsing --date: %w", err)
		}
		if calendarShift != 0 {
			ref = Calendar.Shift(ref, calendarView, calendarShift)
		}

		view, err := loadCalendarView(commandContext(cmd), calendarView, ref)
		if err != nil {
			return err
		}
		recordCalendarRender(view)

		out := cmd.OutOrStdout()
		if calendarJSON {
			return writeJSON(out, view)
		}
		fmt.Fprint(out, renderCalendar(view, terminalWidth(out)))
		return nil
	},
}

func calendarLocation() *time.Location {
	if CalendarLoc != nil {
		return CalendarLoc
	}
	return time.Local
}

// loadCalendarView fetches what the view's range covers and buckets it.
func loadCalendarView(ctx context.Context, g models.Granularity, ref time.Time) (core.CalendarView, error) {
	r := Calendar.Range(ref, g)
	tasks, err := Workspace.TasksInRange(ctx, r)
	if err != nil {
		return core.CalendarView{}, fmt.Errorf("loading tasks: %w", err)
	}
	logs, err := Workspace.TimeLogsInRange(ctx, r)
	if err != nil {
		return core.CalendarView{}, fmt.Errorf("loading time logs: %w", err)
	}
	return Calendar.Grid(g, ref, tasks, logs), nil
}

// recordCalendarRender logs the view so metrics can count views and alerts
// can spot overloaded months.
func recordCalendarRender(view core.CalendarView) {
	if Events == nil {
		return
	}
	heavy := 0
	for _, d := range view.Days {
		if d.Load == core.LoadHeavy && (view.Granularity != models.GranularityMonth || d.IsCurrentMonth) {
			heavy++
		}
	}
	_ = Events.LogEvent(observability.TypeCalendarRendered, map[string]any{
		"granularity": string(view.Granularity),
		"reference":   viewTitle(view),
		"heavy_days":  heavy,
		"total_time":  view.TotalTime,
	})
}

// viewTitle names the period a view covers.
func viewTitle(view core.CalendarView) string {
	switch view.Granularity {
	case models.GranularityDay:
		return view.Reference.Format("Monday, 2 January 2006")
	case models.GranularityWeek:
		last := view.Range.End.AddDate(0, 0, -1)
		return fmt.Sprintf("Week of %s - %s", view.Range.Start.Format("2 Jan"), last.Format("2 Jan 2006"))
	default:
		return view.Reference.Format("January 2006")
	}
}

// renderCalendar draws view for a terminal width columns wide.
func renderCalendar(view core.CalendarView, width int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(viewTitle(view)))
	b.WriteString("\n\n")

	switch view.Granularity {
	case models.GranularityDay:
		b.WriteString(renderDay(view, width))
	case models.GranularityWeek:
		b.WriteString(renderWeek(view, width))
	default:
		b.WriteString(renderMonth(view, width))
	}

	b.WriteString("\n")
	b.WriteString(headerStyle.Render("Total: " + core.FormatHours(view.TotalTime)))
	b.WriteString("\n")
	return b.String()
}

// monthCellLines is the number of task lines shown per month cell.
const monthCellLines = 2

func renderMonth(view core.CalendarView, width int) string {
	// Seven cells plus their borders.
	cellWidth := (width - 14) / 7
	if cellWidth < 6 {
		cellWidth = 6
	}

	header := make([]string, 0, 7)
	for i := 0; i < 7; i++ {
		name := time.Weekday(i).String()[:3]
		header = append(header, headerStyle.Width(cellWidth+2).Align(lipgloss.Center).Render(name))
	}

	rows := []string{lipgloss.JoinHorizontal(lipgloss.Top, header...)}
	for week := 0; week*7 < len(view.Days); week++ {
		end := week*7 + 7
		if end > len(view.Days) {
			end = len(view.Days)
		}
		cells := make([]string, 0, 7)
		for _, day := range view.Days[week*7 : end] {
			cells = append(cells, renderMonthCell(day, cellWidth))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...) + "\n"
}

func renderMonthCell(day core.CalendarDay, width int) string {
	label := fmt.Sprintf("%2d", day.Date.Day())
	switch {
	case day.IsToday:
		label = todayStyle.Render(label)
	case !day.IsCurrentMonth:
		label = dimStyle.Render(label)
	case day.IsWeekend:
		label = weekendStyle.Render(label)
	}
	if day.TotalTime > 0 {
		hours := lipgloss.NewStyle().Foreground(heatColor(day.TotalTime, heavyHours())).
			Render(core.FormatHours(day.TotalTime))
		label += " " + hours
	}

	lines := []string{label}
	for i, t := range day.Tasks {
		if i == monthCellLines {
			lines = append(lines, dimStyle.Render(fmt.Sprintf("+%d more", len(day.Tasks)-i)))
			break
		}
		lines = append(lines, truncateText(t.Name, width))
	}
	for len(lines) < monthCellLines+2 {
		lines = append(lines, "")
	}

	style := cellStyle.Width(width)
	if !day.IsCurrentMonth {
		style = style.Faint(true)
	}
	return style.Render(strings.Join(lines, "\n"))
}

func renderWeek(view core.CalendarView, width int) string {
	var b strings.Builder
	nameWidth := width - 24
	if nameWidth < 10 {
		nameWidth = 10
	}
	for _, day := range view.Days {
		label := day.Date.Format("Mon 02 Jan")
		switch {
		case day.IsToday:
			label = todayStyle.Render(label)
		case day.IsWeekend:
			label = weekendStyle.Render(label)
		}
		hours := lipgloss.NewStyle().Width(8).Foreground(heatColor(day.TotalTime, heavyHours())).
			Render(core.FormatHours(day.TotalTime))
		fmt.Fprintf(&b, "%s  %s  %s\n", label, hours, joinTaskNames(day.Tasks, nameWidth))
	}
	return b.String()
}

func renderDay(view core.CalendarView, width int) string {
	var b strings.Builder
	nameWidth := width - 18
	if nameWidth < 10 {
		nameWidth = 10
	}
	for _, bucket := range view.Hours {
		label := fmt.Sprintf("%02d:00", bucket.Hour)
		if len(bucket.Tasks) == 0 && len(bucket.TimeLogs) == 0 {
			fmt.Fprintln(&b, dimStyle.Render(label))
			continue
		}
		hours := lipgloss.NewStyle().Width(8).Render(core.FormatHours(bucket.TotalTime))
		fmt.Fprintf(&b, "%s  %s  %s\n", label, hours, joinTaskNames(bucket.Tasks, nameWidth))
	}
	return b.String()
}

func joinTaskNames(tasks []models.Task, width int) string {
	names := make([]string, 0, len(tasks))
	for _, t := range tasks {
		names = append(names, t.Name)
	}
	return truncateText(strings.Join(names, ", "), width)
}

func init() {
	calendarCmd.Flags().Var(newGranularityValue(models.GranularityMonth, &calendarView), "view", "Calendar view: day, week or month")
	calendarCmd.Flags().StringVar(&calendarDate, "date", "", "Reference date as YYYY-MM-DD (default today)")
	calendarCmd.Flags().IntVar(&calendarShift, "shift", 0, "Move the view by this many days, weeks or months")
	calendarCmd.Flags().BoolVar(&calendarJSON, "json", false, "Output the view as JSON")
	calendarCmd.Flags().SetNormalizeFunc(normalizeCalendarFlags)
	rootCmd.AddCommand(calendarCmd)
}
