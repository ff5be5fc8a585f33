// Package tui renders the monitor: a live view of per-project session
// activity and terminal connections, with project navigation and a toggle
// for the selected project's terminal.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/cockpit/internal/lifecycle"
	"github.com/Iron-Ham/cockpit/internal/project"
	"github.com/Iron-Ham/cockpit/internal/terminal"
	"github.com/Iron-Ham/cockpit/internal/tui/styles"
	"github.com/Iron-Ham/cockpit/internal/util"
	"github.com/Iron-Ham/cockpit/internal/workspace"
)

// refreshInterval is how often the monitor re-reads its sources.
const refreshInterval = time.Second

// screenPreviewRows bounds the terminal preview panel.
const screenPreviewRows = 12

type tickMsg time.Time

type refreshDoneMsg struct{ err error }

type termToggleMsg struct{ err error }

// Model is the bubbletea model for the monitor view.
type Model struct {
	workspace *workspace.Workspace
	tracker   *lifecycle.Tracker
	registry  *terminal.Registry
	mux       *terminal.Multiplexer

	spinner    spinner.Model
	cursor     int
	width      int
	height     int
	refreshing bool
	err        error
	now        time.Time
}

// NewModel creates a monitor over the given sources.
func NewModel(ws *workspace.Workspace, tracker *lifecycle.Tracker, registry *terminal.Registry, mux *terminal.Multiplexer) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Primary
	return Model{
		workspace: ws,
		tracker:   tracker,
		registry:  registry,
		mux:       mux,
		spinner:   sp,
		now:       time.Now(),
	}
}

// Init starts the refresh ticker.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tick(), m.spinner.Tick)
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles key presses and refresh ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down", "j":
			if n := len(m.workspace.Projects()); m.cursor < n-1 {
				m.cursor++
			}
			return m, nil
		case "enter":
			if p := m.cursorProject(); p != nil {
				m.err = m.workspace.SelectProject(p.Name)
			}
			return m, nil
		case "t":
			return m, m.toggleTerminal()
		case "r":
			if m.refreshing {
				return m, nil
			}
			m.refreshing = true
			return m, refreshCmd(m.workspace)
		}
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		return m, tick()

	case refreshDoneMsg:
		m.refreshing = false
		m.err = msg.err
		return m, nil

	case termToggleMsg:
		m.err = msg.err
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func refreshCmd(ws *workspace.Workspace) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return refreshDoneMsg{err: ws.FetchProjects(ctx)}
	}
}

// cursorProject returns the project under the navigation cursor.
func (m Model) cursorProject() *project.Snapshot {
	projects := m.workspace.Projects()
	if len(projects) == 0 {
		return nil
	}
	i := m.cursor
	if i >= len(projects) {
		i = len(projects) - 1
	}
	return projects[i]
}

// toggleTerminal connects the cursor project's terminal, or closes the
// transport when it is already open. The dial runs off the update loop.
func (m Model) toggleTerminal() tea.Cmd {
	p := m.cursorProject()
	if p == nil {
		return nil
	}
	mux := m.mux
	name, path := p.Name, p.FullPath
	return func() tea.Msg {
		if mux.State(name) == terminal.StateConnected {
			mux.Disconnect(name)
			return termToggleMsg{}
		}
		if _, err := mux.Switch(name, path); err != nil {
			return termToggleMsg{err: err}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return termToggleMsg{err: mux.Connect(ctx, name)}
	}
}

// View renders the monitor.
func (m Model) View() string {
	var b strings.Builder

	title := "Cockpit Monitor"
	if m.refreshing {
		title = m.spinner.View() + " " + title
	}
	b.WriteString(styles.Title.Render(title))
	b.WriteString("\n")

	b.WriteString(m.projectsPanel())
	b.WriteString("\n")
	b.WriteString(m.sessionsPanel())
	b.WriteString("\n")
	b.WriteString(m.terminalsPanel())
	b.WriteString("\n")
	if screen := m.screenPanel(); screen != "" {
		b.WriteString(screen)
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString(styles.ErrorMsg.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	}

	help := lipgloss.JoinHorizontal(lipgloss.Left,
		styles.HelpKey.Render("↑/↓"), styles.Muted.Render(" move  "),
		styles.HelpKey.Render("enter"), styles.Muted.Render(" select  "),
		styles.HelpKey.Render("t"), styles.Muted.Render(" terminal  "),
		styles.HelpKey.Render("r"), styles.Muted.Render(" refresh  "),
		styles.HelpKey.Render("q"), styles.Muted.Render(" quit"),
	)
	b.WriteString(styles.HelpBar.Render(help))
	return b.String()
}

// projectsPanel lists every project with the cursor, the workspace
// selection, and a connection marker for open terminals.
func (m Model) projectsPanel() string {
	projects := m.workspace.Projects()
	selected, _ := m.workspace.Selection()

	var rows []string
	rows = append(rows, styles.PanelTitle.Render(
		fmt.Sprintf("Projects (%d)", len(projects))))

	if len(projects) == 0 {
		rows = append(rows, styles.Muted.Render("no projects"))
	}
	for i, p := range projects {
		marker := "  "
		if i == m.cursor {
			marker = styles.Primary.Render("> ")
		}
		name := util.Truncate(p.Label(), 24)
		if selected != nil && selected.Name == p.Name {
			name = styles.Text.Render(name) + styles.Muted.Render(" *")
		}
		line := marker + name
		if m.mux.State(p.Name) == terminal.StateConnected {
			line += " " + styles.Secondary.Render(styles.TerminalIcon(true))
		}
		rows = append(rows, m.fitRow(line))
	}

	return styles.Panel.Render(strings.Join(rows, "\n"))
}

// sessionsPanel lists every project with a status record, active first.
func (m Model) sessionsPanel() string {
	statuses := m.tracker.Statuses()

	names := make([]string, 0, len(statuses))
	active := 0
	for name, s := range statuses {
		names = append(names, name)
		if s.Active {
			active++
		}
	}
	sort.Strings(names)

	var rows []string
	rows = append(rows, styles.PanelTitle.Render(
		fmt.Sprintf("Sessions (%d active)", active)))

	if len(names) == 0 {
		rows = append(rows, styles.Muted.Render("no session activity"))
	}
	for _, name := range names {
		s := statuses[name]
		icon := lipgloss.NewStyle().
			Foreground(styles.SessionColor(s.Active)).
			Render(styles.SessionIcon(s.Active))

		line := fmt.Sprintf("%s %-20s %-24s %s",
			icon, util.Truncate(name, 20), util.Truncate(s.StatusText, 24), m.sessionDetail(s))
		rows = append(rows, m.fitRow(line))
	}

	return styles.Panel.Render(strings.Join(rows, "\n"))
}

func (m Model) sessionDetail(s lifecycle.Status) string {
	var parts []string
	if s.Tokens > 0 {
		parts = append(parts, fmt.Sprintf("%d tok", s.Tokens))
	}
	if s.Active && !s.StartTime.IsZero() {
		parts = append(parts, elapsed(m.now.Sub(s.StartTime)))
	}
	if !s.Active && !s.EndTime.IsZero() {
		parts = append(parts, "ended "+elapsed(m.now.Sub(s.EndTime))+" ago")
	}
	return styles.Muted.Render(strings.Join(parts, "  "))
}

// terminalsPanel lists connected terminals with their connect times.
func (m Model) terminalsPanel() string {
	records := m.registry.ListConnected()

	var rows []string
	rows = append(rows, styles.PanelTitle.Render(
		fmt.Sprintf("Terminals (%d connected)", len(records))))

	if len(records) == 0 {
		rows = append(rows, styles.Muted.Render("no connected terminals"))
	}
	for _, rec := range records {
		icon := styles.Secondary.Render(styles.TerminalIcon(rec.Connected))
		line := fmt.Sprintf("%s %-20s %s",
			icon, util.Truncate(rec.ProjectName, 20),
			styles.Muted.Render("up "+elapsed(m.now.Sub(rec.ConnectedAt))))
		rows = append(rows, m.fitRow(line))
	}

	return styles.Panel.Render(strings.Join(rows, "\n"))
}

// screenPanel previews the cursor project's terminal screen while its
// transport is open.
func (m Model) screenPanel() string {
	p := m.cursorProject()
	if p == nil || m.mux.State(p.Name) != terminal.StateConnected {
		return ""
	}
	h, ok := m.mux.Handle(p.Name)
	if !ok {
		return ""
	}

	lines := h.Screen()
	if len(lines) > screenPreviewRows {
		lines = lines[:screenPreviewRows]
	}

	rows := []string{styles.PanelTitle.Render("Terminal: " + p.Label())}
	for _, line := range lines {
		rows = append(rows, m.fitRow(line))
	}
	return styles.Panel.Render(strings.Join(rows, "\n"))
}

// fitRow clamps a styled row to the viewport width without losing colors.
func (m Model) fitRow(row string) string {
	if m.width <= 0 {
		return row
	}
	return util.TruncateANSI(row, m.width)
}

func elapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
