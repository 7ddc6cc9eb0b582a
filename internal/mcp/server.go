// Package mcp provides an MCP (Model Context Protocol) server that exposes
// pmcal calendar and task tree data as MCP tools.
package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mihovilrak/pm-sub004/internal/core"
	"github.com/mihovilrak/pm-sub004/internal/observability"
	"github.com/mihovilrak/pm-sub004/pkg/models"
)

// Server wraps pmcal services and exposes them as MCP tools.
type Server struct {
	server      *gomcp.Server
	workspace   core.Workspace
	engine      core.CalendarEngine
	metricsCalc observability.MetricsCalculator
	alertEngine observability.AlertEngine
	now         func() time.Time
}

// NewServer creates a new MCP server over workspace. metricsCalc and
// alertEngine may be nil if events are disabled.
func NewServer(workspace core.Workspace, engine core.CalendarEngine, metricsCalc observability.MetricsCalculator, alertEngine observability.AlertEngine, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		workspace:   workspace,
		engine:      engine,
		metricsCalc: metricsCalc,
		alertEngine: alertEngine,
		now:         time.Now,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "pmcal", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio, blocking until the client disconnects
// or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type taskOutput struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	ParentID  int64   `json:"parent_id,omitempty"`
	ProjectID int64   `json:"project_id,omitempty"`
	Status    string  `json:"status,omitempty"`
	Priority  string  `json:"priority,omitempty"`
	Progress  int     `json:"progress"`
	SpentTime float64 `json:"spent_time"`
	StartDate string  `json:"start_date,omitempty"`
	EndDate   string  `json:"end_date,omitempty"`
	DueDate   string  `json:"due_date,omitempty"`
}

type timeLogOutput struct {
	ID          int64   `json:"id"`
	TaskID      int64   `json:"task_id"`
	CreatedOn   string  `json:"created_on"`
	SpentTime   float64 `json:"spent_time"`
	Description string  `json:"description,omitempty"`
}

type calendarGridInput struct {
	View string `json:"view,omitempty" jsonschema:"calendar granularity: day, week or month. Defaults to month."`
	Date string `json:"date,omitempty" jsonschema:"reference date as YYYY-MM-DD. Defaults to today."`
}

type bucketOutput struct {
	Date           string          `json:"date,omitempty"`
	Hour           *int            `json:"hour,omitempty"`
	IsCurrentMonth bool            `json:"is_current_month,omitempty"`
	IsToday        bool            `json:"is_today,omitempty"`
	IsWeekend      bool            `json:"is_weekend,omitempty"`
	Load           string          `json:"load,omitempty"`
	TotalTime      float64         `json:"total_time"`
	Tasks          []taskOutput    `json:"tasks"`
	TimeLogs       []timeLogOutput `json:"time_logs"`
}

type calendarGridOutput struct {
	View      string         `json:"view"`
	Reference string         `json:"reference"`
	Start     string         `json:"start"`
	End       string         `json:"end"`
	TotalTime float64        `json:"total_time"`
	Buckets   []bucketOutput `json:"buckets"`
}

type taskChildrenInput struct {
	TaskID int64 `json:"task_id" jsonschema:"required,the numeric ID of the parent task"`
}

type taskChildrenOutput struct {
	TaskID   int64        `json:"task_id"`
	Children []taskOutput `json:"children"`
	Count    int          `json:"count"`
	Progress float64      `json:"progress"`
}

type taskTreeInput struct {
	ProjectID int64   `json:"project_id,omitempty" jsonschema:"limit roots to one project. 0 lists every project."`
	Expand    []int64 `json:"expand,omitempty" jsonschema:"task IDs to expand, in order. A child is only shown if its parent is expanded too."`
}

type treeRowOutput struct {
	Task       taskOutput `json:"task"`
	Depth      int        `json:"depth"`
	Expanded   bool       `json:"expanded"`
	Expandable bool       `json:"expandable"`
	State      string     `json:"state"`
}

type taskTreeOutput struct {
	Rows     []treeRowOutput `json:"rows"`
	Count    int             `json:"count"`
	Failures []string        `json:"failures,omitempty"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
	EventCount      int            `json:"event_count"`
	SubtreeLoads    int            `json:"subtree_loads"`
	SubtasksFetched int            `json:"subtasks_fetched"`
	LoadFailures    int            `json:"load_failures"`
	FailureRate     float64        `json:"failure_rate"`
	Deletions       int            `json:"deletions"`
	DeleteFailures  int            `json:"delete_failures"`
	CalendarViews   map[string]int `json:"calendar_views"`
	OldestEvent     string         `json:"oldest_event,omitempty"`
	NewestEvent     string         `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "calendar_grid",
		Description: "Bucket tasks and time logs into a day (24 hours), week (7 days from Sunday) or month (42 days) calendar view.",
	}, s.handleCalendarGrid)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "task_children",
		Description: "List the direct subtasks of a task with the share of them that are done.",
	}, s.handleTaskChildren)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "task_tree",
		Description: "Render the root tasks as an indented tree, expanding the given task IDs in order.",
	}, s.handleTaskTree)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get task tree and calendar metrics from the event log: subtree loads, failures, deletions and views rendered.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Get active alerts: load failure spikes, tasks that keep failing to load and overloaded months.",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleCalendarGrid(ctx context.Context, _ *gomcp.CallToolRequest, input calendarGridInput) (*gomcp.CallToolResult, calendarGridOutput, error) {
	g, err := models.ParseGranularity(input.View)
	if err != nil {
		return errorResult(err.Error()), calendarGridOutput{}, nil
	}

	ref := s.now()
	if input.Date != "" {
		ts, ok := models.ParseTimestamp(input.Date)
		if !ok {
			return errorResult(fmt.Sprintf("invalid date %q: use YYYY-MM-DD", input.Date)), calendarGridOutput{}, nil
		}
		ref = ts.Time
	}

	r := s.engine.Range(ref, g)
	tasks, err := s.workspace.TasksInRange(ctx, r)
	if err != nil {
		return errorResult(fmt.Sprintf("loading tasks: %v", err)), calendarGridOutput{}, nil
	}
	logs, err := s.workspace.TimeLogsInRange(ctx, r)
	if err != nil {
		return errorResult(fmt.Sprintf("loading time logs: %v", err)), calendarGridOutput{}, nil
	}

	view := s.engine.Grid(g, ref, tasks, logs)
	return nil, toCalendarGridOutput(view), nil
}

func (s *Server) handleTaskChildren(ctx context.Context, _ *gomcp.CallToolRequest, input taskChildrenInput) (*gomcp.CallToolResult, taskChildrenOutput, error) {
	if input.TaskID <= 0 {
		return errorResult("task_id must be a positive integer"), taskChildrenOutput{}, nil
	}

	failures := &failureCollector{}
	tree := core.NewTaskTree(s.workspace, nil, failures)
	if !tree.ToggleExpand(ctx, input.TaskID) {
		return errorResult(failures.first(fmt.Sprintf("loading subtasks of task %d failed", input.TaskID))), taskChildrenOutput{}, nil
	}

	children, _ := tree.Children(input.TaskID)
	out := taskChildrenOutput{
		TaskID:   input.TaskID,
		Children: make([]taskOutput, 0, len(children)),
		Count:    len(children),
		Progress: tree.Progress(input.TaskID),
	}
	for _, c := range children {
		out.Children = append(out.Children, toTaskOutput(c))
	}
	return nil, out, nil
}

func (s *Server) handleTaskTree(ctx context.Context, _ *gomcp.CallToolRequest, input taskTreeInput) (*gomcp.CallToolResult, taskTreeOutput, error) {
	roots, err := s.workspace.RootTasks(ctx, input.ProjectID)
	if err != nil {
		return errorResult(fmt.Sprintf("loading root tasks: %v", err)), taskTreeOutput{}, nil
	}

	failures := &failureCollector{}
	tree := core.NewTaskTree(s.workspace, nil, failures)
	for _, id := range input.Expand {
		if !tree.IsExpanded(id) {
			tree.ToggleExpand(ctx, id)
		}
	}

	rows := tree.RenderRows(roots)
	out := taskTreeOutput{
		Rows:     make([]treeRowOutput, 0, len(rows)),
		Count:    len(rows),
		Failures: failures.messages(),
	}
	for _, row := range rows {
		out.Rows = append(out.Rows, treeRowOutput{
			Task:       toTaskOutput(row.Task),
			Depth:      row.Depth,
			Expanded:   row.Expanded,
			Expandable: row.Expandable,
			State:      row.State,
		})
	}
	return nil, out, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("event log is disabled: metrics are not available"), metricsOutput{}, nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}

	since, err := parseSince(sinceStr, s.now())
	if err != nil {
		return errorResult(fmt.Sprintf("invalid since value: %v", err)), metricsOutput{}, nil
	}

	m, err := s.metricsCalc.Calculate(since)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %v", err)), metricsOutput{}, nil
	}

	out := metricsOutput{
		EventCount:      m.EventCount,
		SubtreeLoads:    m.SubtreeLoads,
		SubtasksFetched: m.SubtasksFetched,
		LoadFailures:    m.LoadFailures,
		FailureRate:     m.FailureRate(),
		Deletions:       m.Deletions,
		DeleteFailures:  m.DeleteFailures,
		CalendarViews:   m.CalendarViews,
	}
	if out.CalendarViews == nil {
		out.CalendarViews = make(map[string]int)
	}
	if m.OldestEvent != nil {
		out.OldestEvent = m.OldestEvent.Format(time.RFC3339)
	}
	if m.NewestEvent != nil {
		out.NewestEvent = m.NewestEvent.Format(time.RFC3339)
	}
	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.alertEngine == nil {
		return errorResult("event log is disabled: alerts are not available"), getAlertsOutput{}, nil
	}

	alerts, err := s.alertEngine.Evaluate()
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %v", err)), getAlertsOutput{}, nil
	}

	out := getAlertsOutput{
		Alerts: make([]alertOutput, 0, len(alerts)),
		Count:  len(alerts),
	}
	for _, a := range alerts {
		out.Alerts = append(out.Alerts, alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		})
	}
	return nil, out, nil
}

// --- Helpers ---

// failureCollector is the ErrorReporter for trees built per tool call.
type failureCollector struct {
	mu   sync.Mutex
	errs []string
}

func (c *failureCollector) Error(message string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, fmt.Sprintf("%s: %v", message, err))
}

func (c *failureCollector) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.errs...)
}

func (c *failureCollector) first(fallback string) string {
	if msgs := c.messages(); len(msgs) > 0 {
		return msgs[0]
	}
	return fallback
}

func toTaskOutput(t models.Task) taskOutput {
	out := taskOutput{
		ID:        t.ID,
		Name:      t.Name,
		ProjectID: t.ProjectID,
		Status:    string(t.Status),
		Priority:  string(t.Priority),
		Progress:  t.Progress,
		SpentTime: t.SpentTime.Float(),
		StartDate: t.StartDate.String(),
		EndDate:   t.EndDate.String(),
		DueDate:   t.DueDate.String(),
	}
	if t.ParentID != nil {
		out.ParentID = *t.ParentID
	}
	return out
}

func toTimeLogOutputs(logs []models.TimeLog) []timeLogOutput {
	out := make([]timeLogOutput, 0, len(logs))
	for _, l := range logs {
		out = append(out, timeLogOutput{
			ID:          l.ID,
			TaskID:      l.TaskID,
			CreatedOn:   l.CreatedOn.String(),
			SpentTime:   l.SpentTime.Float(),
			Description: l.Description,
		})
	}
	return out
}

func toTaskOutputs(tasks []models.Task) []taskOutput {
	out := make([]taskOutput, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskOutput(t))
	}
	return out
}

func toCalendarGridOutput(view core.CalendarView) calendarGridOutput {
	out := calendarGridOutput{
		View:      string(view.Granularity),
		Reference: view.Reference.Format(time.DateOnly),
		Start:     view.Range.Start.Format(time.RFC3339),
		End:       view.Range.End.Format(time.RFC3339),
		TotalTime: view.TotalTime,
	}
	if view.Granularity == models.GranularityDay {
		out.Buckets = make([]bucketOutput, 0, len(view.Hours))
		for _, h := range view.Hours {
			hour := h.Hour
			out.Buckets = append(out.Buckets, bucketOutput{
				Hour:      &hour,
				TotalTime: h.TotalTime,
				Tasks:     toTaskOutputs(h.Tasks),
				TimeLogs:  toTimeLogOutputs(h.TimeLogs),
			})
		}
		return out
	}
	out.Buckets = make([]bucketOutput, 0, len(view.Days))
	for _, d := range view.Days {
		out.Buckets = append(out.Buckets, bucketOutput{
			Date:           d.Date.Format(time.DateOnly),
			IsCurrentMonth: d.IsCurrentMonth,
			IsToday:        d.IsToday,
			IsWeekend:      d.IsWeekend,
			Load:           string(d.Load),
			TotalTime:      d.TotalTime,
			Tasks:          toTaskOutputs(d.Tasks),
			TimeLogs:       toTimeLogOutputs(d.TimeLogs),
		})
	}
	return out
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// parseSince parses a human-friendly duration string like "7d", "30d", or "24h"
// into the corresponding time before now.
func parseSince(s string, now time.Time) (time.Time, error) {
	now = now.UTC()

	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
