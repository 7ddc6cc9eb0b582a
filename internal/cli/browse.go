package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/mihovilrak/pm-sub004/internal/core"
	"github.com/mihovilrak/pm-sub004/internal/storage"
	"github.com/mihovilrak/pm-sub004/pkg/models"
)

// browsePane is the pane that receives navigation keys.
type browsePane int

const (
	paneTree browsePane = iota
	paneCalendar
)

type browseKeys struct {
	Up       key.Binding
	Down     key.Binding
	Toggle   key.Binding
	Delete   key.Binding
	Prev     key.Binding
	Next     key.Binding
	Today    key.Binding
	Day      key.Binding
	Week     key.Binding
	Month    key.Binding
	SwitchTo key.Binding
	Reload   key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func defaultBrowseKeys() browseKeys {
	return browseKeys{
		Up:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("↓/j", "down")),
		Toggle:   key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "expand/collapse")),
		Delete:   key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x", "delete task")),
		Prev:     key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("←/h", "previous")),
		Next:     key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("→/l", "next")),
		Today:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "today")),
		Day:      key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "day view")),
		Week:     key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "week view")),
		Month:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "month view")),
		SwitchTo: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch pane")),
		Reload:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
		Quit:     key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k browseKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.SwitchTo, k.Prev, k.Next, k.Help, k.Quit}
}

func (k browseKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Toggle, k.Delete},
		{k.Prev, k.Next, k.Today},
		{k.Day, k.Week, k.Month},
		{k.SwitchTo, k.Reload, k.Help, k.Quit},
	}
}

// Messages carrying async results back to the model.
type (
	rootsLoadedMsg struct {
		roots []models.Task
		err   error
	}
	calendarLoadedMsg struct {
		seq  int
		view core.CalendarView
		err  error
	}
	// toggledMsg reports that one or more ToggleExpand calls finished.
	toggledMsg struct{}
	deletedMsg struct {
		id int64
		ok bool
	}
	reloadedMsg struct{ err error }
)

// workspaceChangedMsg is sent by the file watcher when the workspace file
// changes on disk.
type workspaceChangedMsg struct{}

// browseModel is the bubbletea model of `pmcal browse`.
type browseModel struct {
	ctx      context.Context
	keys     browseKeys
	help     help.Model
	spinner  spinner.Model
	reporter *captureReporter

	pane        browsePane
	granularity models.Granularity
	ref         time.Time
	view        core.CalendarView
	calendarSeq int
	tree        *core.TaskTree
	roots       []models.Task
	cursor      int
	pending     int
	restore     []int64

	confirmDelete int64
	seenFailures  int
	status        string
	err           error
	width         int
	height        int
}

func newBrowseModel(ctx context.Context, state storage.ViewState) *browseModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := &browseModel{
		ctx:         ctx,
		keys:        defaultBrowseKeys(),
		help:        help.New(),
		spinner:     sp,
		reporter:    newCaptureReporter(Reporter),
		granularity: models.GranularityMonth,
		ref:         nowFunc().In(calendarLocation()),
		restore:     state.Expanded,
	}
	if g, err := models.ParseGranularity(state.Granularity); err == nil && state.Granularity != "" {
		m.granularity = g
	}
	if state.Date != "" {
		if ref, err := parseReference(state.Date, calendarLocation(), m.ref); err == nil {
			m.ref = ref
		}
	}
	m.tree = newTaskTree(m.reporter)
	return m
}

// Init implements tea.Model.
func (m *browseModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.loadRoots(), m.loadCalendar()}
	if len(m.restore) > 0 {
		cmds = append(cmds, m.expandIDs(m.restore))
		m.restore = nil
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case rootsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.roots = msg.roots
		m.clampCursor()
		return m, nil
	case calendarLoadedMsg:
		if msg.seq != m.calendarSeq {
			// Superseded by a later request.
			return m, nil
		}
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.view = msg.view
		recordCalendarRender(msg.view)
		return m, nil
	case toggledMsg:
		m.finishPending()
		m.clampCursor()
		return m, nil
	case deletedMsg:
		m.finishPending()
		if !msg.ok {
			return m, nil
		}
		m.removeRoot(msg.id)
		m.status = fmt.Sprintf("Deleted task #%d", msg.id)
		m.clampCursor()
		return m, m.loadCalendar()
	case workspaceChangedMsg:
		return m, m.reload()
	case reloadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		expanded := m.expandedIDs()
		m.tree = newTaskTree(m.reporter)
		return m, tea.Batch(m.loadRoots(), m.loadCalendar(), m.expandIDs(expanded))
	}
	return m, nil
}

func (m *browseModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirmDelete != 0 {
		id := m.confirmDelete
		m.confirmDelete = 0
		if msg.String() == "y" || msg.String() == "Y" {
			return m, m.deleteTask(id)
		}
		m.status = "Delete canceled."
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.SwitchTo):
		if m.pane == paneTree {
			m.pane = paneCalendar
		} else {
			m.pane = paneTree
		}
		return m, nil
	case key.Matches(msg, m.keys.Reload):
		return m, m.reload()
	case key.Matches(msg, m.keys.Day):
		return m, m.setGranularity(models.GranularityDay)
	case key.Matches(msg, m.keys.Week):
		return m, m.setGranularity(models.GranularityWeek)
	case key.Matches(msg, m.keys.Month):
		return m, m.setGranularity(models.GranularityMonth)
	case key.Matches(msg, m.keys.Today):
		m.ref = nowFunc().In(calendarLocation())
		return m, m.loadCalendar()
	case key.Matches(msg, m.keys.Prev):
		m.ref = Calendar.Shift(m.ref, m.granularity, -1)
		return m, m.loadCalendar()
	case key.Matches(msg, m.keys.Next):
		m.ref = Calendar.Shift(m.ref, m.granularity, 1)
		return m, m.loadCalendar()
	}

	if m.pane != paneTree {
		return m, nil
	}

	rows := m.rows()
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(rows)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Toggle):
		if m.cursor < len(rows) {
			return m, m.toggle(rows[m.cursor].Task.ID)
		}
	case key.Matches(msg, m.keys.Delete):
		if m.cursor < len(rows) {
			task := rows[m.cursor].Task
			m.confirmDelete = task.ID
			m.status = fmt.Sprintf("Delete task #%d %q and its subtasks? (y/N)", task.ID, task.Name)
		}
	}
	return m, nil
}

// finishPending settles one async tree call and surfaces any failure it
// reported.
func (m *browseModel) finishPending() {
	if m.pending > 0 {
		m.pending--
	}
	if msgs := m.reporter.Messages(); len(msgs) > m.seenFailures {
		m.status = msgs[len(msgs)-1]
		m.seenFailures = len(msgs)
	}
}

func (m *browseModel) setGranularity(g models.Granularity) tea.Cmd {
	m.granularity = g
	return m.loadCalendar()
}

func (m *browseModel) rows() []core.TreeRow {
	return m.tree.RenderRows(m.roots)
}

func (m *browseModel) clampCursor() {
	n := len(m.rows())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *browseModel) removeRoot(id int64) {
	kept := m.roots[:0:0]
	for _, r := range m.roots {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	m.roots = kept
}

// expandedIDs lists expanded rows in display order, so parents come before
// their children when they are expanded again.
func (m *browseModel) expandedIDs() []int64 {
	var ids []int64
	for _, row := range m.rows() {
		if row.Expanded {
			ids = append(ids, row.Task.ID)
		}
	}
	return ids
}

// state is what is saved for the next run.
func (m *browseModel) state() storage.ViewState {
	return storage.ViewState{
		Granularity: string(m.granularity),
		Date:        m.ref.Format(time.DateOnly),
		Expanded:    m.expandedIDs(),
	}
}

// --- Commands ---

func (m *browseModel) loadRoots() tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		roots, err := Workspace.RootTasks(ctx, 0)
		return rootsLoadedMsg{roots: roots, err: err}
	}
}

func (m *browseModel) loadCalendar() tea.Cmd {
	m.calendarSeq++
	ctx, g, ref, seq := m.ctx, m.granularity, m.ref, m.calendarSeq
	return func() tea.Msg {
		view, err := loadCalendarView(ctx, g, ref)
		return calendarLoadedMsg{seq: seq, view: view, err: err}
	}
}

func (m *browseModel) toggle(id int64) tea.Cmd {
	m.pending++
	ctx, tree := m.ctx, m.tree
	return func() tea.Msg {
		tree.ToggleExpand(ctx, id)
		return toggledMsg{}
	}
}

// expandIDs expands ids in order, skipping any already expanded.
func (m *browseModel) expandIDs(ids []int64) tea.Cmd {
	if len(ids) == 0 {
		return nil
	}
	m.pending++
	ctx, tree := m.ctx, m.tree
	return func() tea.Msg {
		for _, id := range ids {
			if !tree.IsExpanded(id) {
				tree.ToggleExpand(ctx, id)
			}
		}
		return toggledMsg{}
	}
}

func (m *browseModel) deleteTask(id int64) tea.Cmd {
	m.pending++
	ctx, tree := m.ctx, m.tree
	return func() tea.Msg {
		return deletedMsg{id: id, ok: tree.Delete(ctx, id)}
	}
}

func (m *browseModel) reload() tea.Cmd {
	return func() tea.Msg {
		if ReloadWorkspace == nil {
			return reloadedMsg{}
		}
		return reloadedMsg{err: ReloadWorkspace()}
	}
}

// --- View ---

// View implements tea.Model.
func (m *browseModel) View() string {
	width := m.width
	if width == 0 {
		width = defaultWidth
	}

	var b strings.Builder
	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n\n")
	}

	b.WriteString(m.viewTree(width))
	b.WriteString("\n")
	if m.view.Granularity != "" {
		b.WriteString(renderCalendar(m.view, width))
	}

	if m.status != "" {
		b.WriteString("\n" + m.status + "\n")
	}
	b.WriteString("\n" + helpStyle.Render(m.help.View(m.keys)))
	return b.String()
}

func (m *browseModel) viewTree(width int) string {
	title := "Tasks"
	if m.pane == paneTree {
		title = "▶ Tasks"
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(title))
	b.WriteString("\n")

	rows := m.rows()
	if len(rows) == 0 {
		b.WriteString(dimStyle.Render("  No tasks found."))
		b.WriteString("\n")
		return b.String()
	}
	for i, row := range rows {
		marker := rowMarker(row)
		if row.Loading {
			marker = m.spinner.View()
		}
		line := fmt.Sprintf("%s%s #%d %s", strings.Repeat("  ", row.Depth), marker, row.Task.ID, row.Task.Name)
		line = truncateText(line, width-2)
		if i == m.cursor && m.pane == paneTree {
			line = selectedStyle.Render(line)
		}
		b.WriteString(lipgloss.NewStyle().PaddingLeft(1).Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

var browseReset bool

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse the calendar and task tree interactively",
	Long: `Open an interactive view with the task tree above the calendar.

Expand subtasks with enter, move the calendar with h/l, and switch between
day, week and month with d/w/m. The view reloads when the workspace file
changes, and the view and expanded tasks are restored on the next start.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Workspace == nil || Calendar == nil {
			return fmt.Errorf("workspace not initialized")
		}

		var state storage.ViewState
		if ViewStates != nil {
			if browseReset {
				if err := ViewStates.Reset(); err != nil {
					return err
				}
			} else if saved, err := ViewStates.Load(); err == nil {
				state = saved
			}
		}

		ctx, cancel := context.WithCancel(commandContext(cmd))
		defer cancel()

		model := newBrowseModel(ctx, state)
		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

		if DataPath != "" {
			if w, err := storage.WatchFile(DataPath, func() { p.Send(workspaceChangedMsg{}) }); err == nil {
				defer w.Close()
				go w.Run(ctx, nil)
			}
		}

		final, err := p.Run()
		if err != nil {
			return fmt.Errorf("running browser: %w", err)
		}
		if bm, ok := final.(*browseModel); ok && ViewStates != nil {
			if err := ViewStates.Save(bm.state()); err != nil {
				return fmt.Errorf("saving view state: %w", err)
			}
		}
		return nil
	},
}

func init() {
	browseCmd.Flags().BoolVar(&browseReset, "reset", false, "Forget the saved view and expanded tasks")
	rootCmd.AddCommand(browseCmd)
}
