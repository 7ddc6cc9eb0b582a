package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/mihovilrak/pm-sub004/internal/core"
	"github.com/mihovilrak/pm-sub004/pkg/models"
)

var showJSON bool

type showOutput struct {
	Task     models.Task   `json:"task"`
	Subtasks []models.Task `json:"subtasks"`
	Progress float64       `json:"subtask_progress"`
}

var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a task with its description and subtasks",
	Long: `Show one task: its dates and time, its description rendered as Markdown,
and its direct subtasks with the share of them that are done.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Workspace == nil {
			return fmt.Errorf("workspace not initialized")
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid task ID %q", args[0])
		}
		ctx := commandContext(cmd)

		task, err := Workspace.Task(ctx, id)
		if err != nil {
			return fmt.Errorf("looking up task: %w", err)
		}

		failures := newCaptureReporter(Reporter)
		tree := newTaskTree(failures)
		tree.ToggleExpand(ctx, id)
		subtasks, _ := tree.Children(id)
		if subtasks == nil {
			subtasks = []models.Task{}
		}

		out := cmd.OutOrStdout()
		if showJSON {
			return writeJSON(out, showOutput{Task: task, Subtasks: subtasks, Progress: tree.Progress(id)})
		}

		printTaskHeader(out, task)
		if strings.TrimSpace(task.Description) != "" {
			rendered, err := renderMarkdown(task.Description, terminalWidth(out), isTerminal(out))
			if err != nil {
				return fmt.Errorf("rendering description: %w", err)
			}
			fmt.Fprint(out, rendered)
		}

		if msg := failures.Last(); msg != "" {
			fmt.Fprintf(out, "\nSubtasks unavailable: %s\n", msg)
			return nil
		}
		if len(subtasks) == 0 {
			return nil
		}
		fmt.Fprintf(out, "\n%s\n", headerStyle.Render(fmt.Sprintf("Subtasks (%.0f%% done)", tree.Progress(id))))
		for _, s := range subtasks {
			fmt.Fprintf(out, "  #%-5d %-12s %s\n", s.ID, statusText(s.Status), s.Name)
		}
		return nil
	},
}

func printTaskHeader(w io.Writer, t models.Task) {
	fmt.Fprintf(w, "%s\n\n", titleStyle.Render(fmt.Sprintf("#%d %s", t.ID, t.Name)))
	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(w, "  %-12s %s\n", label+":", value)
		}
	}
	field("Status", string(t.Status))
	field("Priority", string(t.Priority))
	if t.ParentID != nil {
		field("Parent", fmt.Sprintf("#%d", *t.ParentID))
	}
	field("Start", formatDate(t.StartDate))
	field("End", formatDate(t.EndDate))
	field("Due", formatDate(t.DueDate))
	field("Progress", fmt.Sprintf("%d%%", t.Progress))
	if t.EstimatedTime > 0 {
		field("Estimated", core.FormatHours(t.EstimatedTime.Float()))
	}
	field("Spent", core.FormatHours(t.SpentTime.Float()))
	fmt.Fprintln(w)
}

func formatDate(ts models.Timestamp) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Format("2006-01-02 15:04")
}

// renderMarkdown renders md with glamour, without styling when the output is
// not a terminal.
func renderMarkdown(md string, width int, styled bool) (string, error) {
	styleOpt := glamour.WithStandardStyle("notty")
	if styled {
		styleOpt = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width-4))
	if err != nil {
		return "", err
	}
	return r.Render(md)
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Output the task and its subtasks as JSON")
	rootCmd.AddCommand(showCmd)
}
