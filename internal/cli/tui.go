package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/kanban-sync/internal/core"
	"github.com/valter-silva-au/kanban-sync/pkg/models"
)

// boardView is the part of core.Session the interactive board uses.
type boardView interface {
	Board() models.Board
	MoveTaskTo(taskID, toColumnID string, index int) (core.MoveOutcome, error)
	MoveColumnTo(columnID string, index int) (core.MoveOutcome, error)
	Undo() bool
	Redo() bool
	Notice() string
	Refresh(ctx context.Context) error
}

const tuiPollInterval = time.Second

type boardModel struct {
	view   boardView
	board  models.Board
	col    int
	row    int
	width  int
	height int

	notice string
	status string
	err    error
}

// tickMsg re-reads the board so background sync results and notices show up.
type tickMsg time.Time

// refreshedMsg carries the result of a remote refresh.
type refreshedMsg struct{ err error }

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62"))
	completedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	tagStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newBoardModel(view boardView) boardModel {
	return boardModel{view: view, board: view.Board(), notice: view.Notice()}
}

func (m boardModel) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tuiPollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.reload()
		return m, tick()

	case refreshedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = "Refreshed from remote."
		}
		m.reload()
		return m, nil
	}

	return m, nil
}

func (m boardModel) handleKey(key string) (tea.Model, tea.Cmd) {
	m.status = ""
	m.err = nil
	switch key {
	case "q", "esc", "ctrl+c":
		return m, tea.Quit
	case "left", "h":
		m.selectColumn(m.col - 1)
	case "right", "l":
		m.selectColumn(m.col + 1)
	case "up", "k":
		m.selectRow(m.row - 1)
	case "down", "j":
		m.selectRow(m.row + 1)
	case "H", "shift+left":
		m.moveTaskAcross(-1)
	case "L", "shift+right":
		m.moveTaskAcross(1)
	case "K", "shift+up":
		m.moveTaskWithin(-1)
	case "J", "shift+down":
		m.moveTaskWithin(1)
	case "<":
		m.moveColumn(-1)
	case ">":
		m.moveColumn(1)
	case "u":
		if !m.view.Undo() {
			m.status = "Nothing to undo."
		}
		m.reload()
	case "U", "ctrl+r":
		if !m.view.Redo() {
			m.status = "Nothing to redo."
		}
		m.reload()
	case "r":
		m.status = "Refreshing..."
		view := m.view
		return m, func() tea.Msg {
			return refreshedMsg{err: view.Refresh(context.Background())}
		}
	}
	return m, nil
}

// reload re-reads the board and keeps the selection in range.
func (m *boardModel) reload() {
	m.board = m.view.Board()
	m.notice = m.view.Notice()
	m.selectColumn(m.col)
}

func (m *boardModel) selectColumn(i int) {
	n := len(m.board.Columns)
	if n == 0 {
		m.col, m.row = 0, 0
		return
	}
	m.col = clampIndex(i, n)
	m.selectRow(m.row)
}

func (m *boardModel) selectRow(i int) {
	if len(m.board.Columns) == 0 {
		m.row = 0
		return
	}
	n := len(m.board.Columns[m.col].Tasks)
	if n == 0 {
		m.row = 0
		return
	}
	m.row = clampIndex(i, n)
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func (m *boardModel) selectedTask() (models.Task, bool) {
	if m.col >= len(m.board.Columns) {
		return models.Task{}, false
	}
	tasks := m.board.Columns[m.col].Tasks
	if m.row >= len(tasks) {
		return models.Task{}, false
	}
	return tasks[m.row], true
}

func (m *boardModel) moveTaskAcross(delta int) {
	task, ok := m.selectedTask()
	to := m.col + delta
	if !ok || to < 0 || to >= len(m.board.Columns) {
		return
	}
	dest := m.board.Columns[to]
	out, err := m.view.MoveTaskTo(task.ID, dest.ID, len(dest.Tasks))
	if err != nil {
		m.err = err
		m.reload()
		return
	}
	switch out.Completion {
	case core.CompletionCompleted:
		m.status = fmt.Sprintf("%q completed.", task.Title)
	case core.CompletionReopened:
		m.status = fmt.Sprintf("%q reopened.", task.Title)
	}
	m.reload()
	m.selectColumn(to)
	m.selectRow(out.ToIndex)
}

func (m *boardModel) moveTaskWithin(delta int) {
	task, ok := m.selectedTask()
	if !ok {
		return
	}
	to := m.row + delta
	if to < 0 {
		return
	}
	out, err := m.view.MoveTaskTo(task.ID, m.board.Columns[m.col].ID, to)
	m.reload()
	if err != nil {
		m.err = err
		return
	}
	m.selectRow(out.ToIndex)
}

func (m *boardModel) moveColumn(delta int) {
	if m.col >= len(m.board.Columns) {
		return
	}
	to := m.col + delta
	if to < 0 || to >= len(m.board.Columns) {
		return
	}
	if _, err := m.view.MoveColumnTo(m.board.Columns[m.col].ID, to); err != nil {
		m.err = err
	}
	m.reload()
	m.selectColumn(to)
}

func (m boardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" Kanban ")
	help := helpStyle.Render("←/→ ↑/↓: select | H/L: move across | J/K: reorder | </>: move column | u/U: undo/redo | r: refresh | q: quit")

	if len(m.board.Columns) == 0 {
		return fmt.Sprintf("%s\n\n  The board is empty.\n\n%s", title, help)
	}

	availableWidth := m.width - 2
	colWidth := availableWidth/len(m.board.Columns) - 4
	if colWidth < 18 {
		colWidth = 18
	}

	panels := make([]string, len(m.board.Columns))
	for i, col := range m.board.Columns {
		style := panelStyle
		if i == m.col {
			style = activePanelStyle
		}
		panels[i] = style.Width(colWidth).Render(m.renderColumn(i, col))
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, panels...)

	var footer []string
	if m.notice != "" {
		footer = append(footer, noticeStyle.Render("Sync: "+m.notice))
	}
	if m.err != nil {
		footer = append(footer, noticeStyle.Render("Error: "+m.err.Error()))
	}
	if m.status != "" {
		footer = append(footer, statusStyle.Render(m.status))
	}
	footer = append(footer, help)

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, strings.Join(footer, "\n"))
}

func (m boardModel) renderColumn(i int, col models.Column) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%s (%d)", col.Title, len(col.Tasks))))
	b.WriteString("\n")

	if len(col.Tasks) == 0 {
		b.WriteString("  No tasks.")
		return b.String()
	}

	for j, t := range col.Tasks {
		line := t.Title
		if t.Completed {
			line = completedStyle.Render("✓ " + line)
		}
		if i == m.col && j == m.row {
			line = selectedStyle.Render("> " + t.Title)
		}
		b.WriteString(line)
		if len(t.Tags) > 0 {
			b.WriteString(" " + tagStyle.Render("#"+strings.Join(t.Tags, " #")))
		}
		if t.DueDate != "" {
			b.WriteString(helpStyle.Render(" due " + t.DueDate))
		}
		b.WriteString("\n")
	}
	return b.String()
}

var boardTUICmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive terminal board",
	Long: `Launch an interactive terminal view of the board. Select tasks with the
arrow keys, move them between columns with H/L, reorder with J/K, and undo or
redo with u/U. Sync problems are shown at the bottom of the screen.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := session(cmd.Context())
		if err != nil {
			return err
		}
		p := tea.NewProgram(newBoardModel(s), tea.WithAltScreen())
		_, err = p.Run()
		return err
	},
}

func init() {
	boardCmd.AddCommand(boardTUICmd)
}
