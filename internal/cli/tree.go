package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/mihovilrak/pm-sub004/internal/core"
	"github.com/mihovilrak/pm-sub004/pkg/models"
)

// maxExpandDepth bounds --all on malformed parent chains.
const maxExpandDepth = 32

var (
	treeProject int64
	treeExpand  []int64
	treeAll     bool
	treeJSON    bool
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Show root tasks and their subtasks as a tree",
	Long: `Render the root tasks as an indented tree.

Subtasks are fetched only for the tasks named in --expand (or every task with
--all). A subtask is shown only when its parent is expanded as well.`,
	Example: `  pmcal tree
  pmcal tree --expand 1,3
  pmcal tree --project 10 --all --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Workspace == nil {
			return fmt.Errorf("workspace not initialized")
		}
		ctx := commandContext(cmd)

		roots, err := Workspace.RootTasks(ctx, treeProject)
		if err != nil {
			return fmt.Errorf("loading root tasks: %w", err)
		}

		failures := newCaptureReporter(Reporter)
		tree := newTaskTree(failures)
		for _, id := range treeExpand {
			if !tree.IsExpanded(id) {
				tree.ToggleExpand(ctx, id)
			}
		}
		if treeAll {
			expandAll(ctx, tree, roots)
		}

		rows := tree.RenderRows(roots)
		for _, msg := range failures.Messages() {
			fmt.Fprintln(cmd.ErrOrStderr(), color.RedString("warning: %s", msg))
		}

		out := cmd.OutOrStdout()
		if treeJSON {
			return writeJSON(out, rows)
		}
		if len(rows) == 0 {
			fmt.Fprintln(out, "No tasks found.")
			return nil
		}
		printTreeRows(out, tree, rows, terminalWidth(out))
		return nil
	},
}

// newTaskTree builds a tree over the workspace that reports to reporter.
func newTaskTree(reporter core.ErrorReporter) *core.TaskTree {
	var opts []core.TaskTreeOption
	if Events != nil {
		opts = append(opts, core.WithEventLogger(Events))
	}
	return core.NewTaskTree(Workspace, Workspace, reporter, opts...)
}

// expandAll expands every expandable row, level by level.
func expandAll(ctx context.Context, tree *core.TaskTree, roots []models.Task) {
	tried := make(map[int64]bool)
	for depth := 0; depth < maxExpandDepth; depth++ {
		changed := false
		for _, row := range tree.RenderRows(roots) {
			if row.Expanded || !row.Expandable || tried[row.Task.ID] {
				continue
			}
			tried[row.Task.ID] = true
			tree.ToggleExpand(ctx, row.Task.ID)
			changed = true
		}
		if !changed {
			return
		}
	}
}

func printTreeRows(w io.Writer, tree *core.TaskTree, rows []core.TreeRow, width int) {
	nameWidth := width - 50
	if nameWidth < 20 {
		nameWidth = 20
	}

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow("ID", "TASK", "STATUS", "PROGRESS", "SPENT", "DUE")
	for _, row := range rows {
		name := strings.Repeat("  ", row.Depth) + rowMarker(row) + " " + row.Task.Name
		progress := fmt.Sprintf("%d%%", row.Task.Progress)
		if row.Expanded {
			if kids, ok := tree.Children(row.Task.ID); ok && len(kids) > 0 {
				progress = fmt.Sprintf("%.0f%%", tree.Progress(row.Task.ID))
			}
		}
		due := ""
		if !row.Task.DueDate.IsZero() {
			due = row.Task.DueDate.Format("2006-01-02")
		}
		tbl.AddRow(
			row.Task.ID,
			truncateText(name, nameWidth),
			statusText(row.Task.Status),
			progress,
			core.FormatHours(row.Task.SpentTime.Float()),
			due,
		)
	}
	fmt.Fprintln(w, tbl)
}

// rowMarker shows whether a row can be expanded, is expanded, is loading, or
// failed to load.
func rowMarker(row core.TreeRow) string {
	switch {
	case row.Loading:
		return "…"
	case row.State == core.NodeFailed.String():
		return "!"
	case row.Expanded:
		return "▾"
	case row.Expandable:
		return "▸"
	default:
		return "•"
	}
}

func statusText(s models.TaskStatus) string {
	if s == "" {
		return "-"
	}
	switch s {
	case models.StatusDone:
		return color.GreenString(string(s))
	case models.StatusInProgress, models.StatusReview:
		return color.YellowString(string(s))
	case models.StatusOnHold, models.StatusCancelled:
		return color.New(color.Faint).Sprint(string(s))
	default:
		return string(s)
	}
}

// captureReporter keeps the failures of one command so they can be shown to
// the user, and forwards them to next.
type captureReporter struct {
	next core.ErrorReporter

	mu       sync.Mutex
	messages []string
}

func newCaptureReporter(next core.ErrorReporter) *captureReporter {
	return &captureReporter{next: next}
}

func (r *captureReporter) Error(message string, err error) {
	r.mu.Lock()
	r.messages = append(r.messages, fmt.Sprintf("%s: %v", message, err))
	r.mu.Unlock()
	if r.next != nil {
		r.next.Error(message, err)
	}
}

// Messages returns the captured failures in order.
func (r *captureReporter) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

// Last returns the newest failure, or "".
func (r *captureReporter) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return ""
	}
	return r.messages[len(r.messages)-1]
}

func init() {
	treeCmd.Flags().Int64Var(&treeProject, "project", 0, "Only show roots of this project")
	treeCmd.Flags().Int64SliceVar(&treeExpand, "expand", nil, "Task IDs to expand, in order (comma-separated)")
	treeCmd.Flags().BoolVar(&treeAll, "all", false, "Expand every task")
	treeCmd.Flags().BoolVar(&treeJSON, "json", false, "Output rows as JSON")
	rootCmd.AddCommand(treeCmd)
}
