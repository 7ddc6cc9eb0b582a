package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var deleteYes bool

var deleteCmd = &cobra.Command{
	Use:     "delete ID",
	Aliases: []string{"rm"},
	Short:   "Delete a task and its subtasks",
	Long: `Delete a task from the workspace. Subtasks and time logs of the task are
removed with it. Prompts for confirmation in interactive mode.`,
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

		if !deleteYes {
			in := cmd.InOrStdin()
			if f, ok := in.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
				return fmt.Errorf("cannot prompt for confirmation (not a terminal); use --yes")
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Delete task #%d %q and its subtasks? [y/N] ", task.ID, task.Name)
			answer, _ := bufio.NewReader(in).ReadString('\n')
			answer = strings.TrimSpace(strings.ToLower(answer))
			if answer != "y" && answer != "yes" {
				fmt.Fprintln(cmd.ErrOrStderr(), "Canceled.")
				return nil
			}
		}

		failures := newCaptureReporter(Reporter)
		tree := newTaskTree(failures)
		if !tree.Delete(ctx, id) {
			return fmt.Errorf("%s", failures.Last())
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Deleted task #%d: %s\n", task.ID, task.Name)
		return nil
	},
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(deleteCmd)
}
