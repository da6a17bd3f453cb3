package tui

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mpataki/figwalk/internal/models"
	"github.com/mpataki/figwalk/internal/storage"
	"github.com/mpataki/figwalk/internal/workspace"
)

type View int

const (
	ViewSessionList View = iota
	ViewSessionDetail
	ViewReport
)

// App browses recorded sessions, their runs, and run reports.
type App struct {
	store         *storage.Storage
	workspacesDir string

	view           View
	sessions       []*models.Session
	selectedIdx    int
	selected       *models.Session
	runs           []*models.Run
	selectedRunIdx int
	report         viewport.Model

	width  int
	height int
	err    error
}

func NewApp(store *storage.Storage, workspacesDir string) *App {
	return &App{
		store:         store,
		workspacesDir: workspacesDir,
		view:          ViewSessionList,
		report:        viewport.New(80, 20),
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.loadSessions, a.tickCmd())
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// A session started from another terminal shows up as running; keep the
// list fresh until it finishes.
func (a *App) hasRunningSessions() bool {
	for _, sess := range a.sessions {
		if sess.Status == models.SessionStatusRunning {
			return true
		}
	}
	return false
}

type tickMsg time.Time

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.report.Width = msg.Width
		a.report.Height = max(msg.Height-4, 1)
		return a, nil

	case sessionsLoadedMsg:
		a.sessions = msg.sessions
		a.err = msg.err
		if a.selectedIdx >= len(a.sessions) {
			a.selectedIdx = max(len(a.sessions)-1, 0)
		}
		return a, nil

	case tickMsg:
		if a.view == ViewSessionList && a.hasRunningSessions() {
			return a, tea.Batch(a.loadSessions, a.tickCmd())
		}
		return a, a.tickCmd()

	case sessionDetailMsg:
		a.err = msg.err
		if msg.err == nil {
			a.selected = msg.session
			a.runs = msg.runs
			a.selectedRunIdx = 0
			a.view = ViewSessionDetail
		}
		return a, nil

	case sessionDeletedMsg:
		a.err = msg.err
		return a, a.loadSessions
	}

	if a.view == ViewReport {
		var cmd tea.Cmd
		a.report, cmd = a.report.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.view {
	case ViewSessionList:
		return a.handleSessionListKey(msg)
	case ViewSessionDetail:
		return a.handleSessionDetailKey(msg)
	case ViewReport:
		return a.handleReportKey(msg)
	}
	return a, nil
}

func (a *App) handleSessionListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return a, tea.Quit

	case "up", "k":
		if a.selectedIdx > 0 {
			a.selectedIdx--
		}

	case "down", "j":
		if a.selectedIdx < len(a.sessions)-1 {
			a.selectedIdx++
		}

	case "enter":
		if len(a.sessions) > 0 && a.selectedIdx < len(a.sessions) {
			return a, a.loadSessionDetail(a.sessions[a.selectedIdx].ID)
		}

	case "r":
		return a, a.loadSessions

	case "d":
		if len(a.sessions) > 0 && a.selectedIdx < len(a.sessions) {
			return a, a.deleteSession(a.sessions[a.selectedIdx].ID)
		}
	}

	return a, nil
}

func (a *App) handleSessionDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		a.view = ViewSessionList
		a.selected = nil
		a.runs = nil
		a.selectedRunIdx = 0

	case "ctrl+c":
		return a, tea.Quit

	case "up", "k":
		if a.selectedRunIdx > 0 {
			a.selectedRunIdx--
		}

	case "down", "j":
		if a.selectedRunIdx < len(a.runs)-1 {
			a.selectedRunIdx++
		}

	case "enter":
		if len(a.runs) > 0 && a.selectedRunIdx < len(a.runs) {
			run := a.runs[a.selectedRunIdx]
			a.report.SetContent(renderMarkdown(workspace.Report(a.selected, run), a.report.Width))
			a.report.GotoTop()
			a.view = ViewReport
		}
	}

	return a, nil
}

func (a *App) handleReportKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		a.view = ViewSessionDetail
		return a, nil

	case "ctrl+c":
		return a, tea.Quit
	}

	var cmd tea.Cmd
	a.report, cmd = a.report.Update(msg)
	return a, cmd
}

func (a *App) View() string {
	switch a.view {
	case ViewSessionList:
		return a.viewSessionList()
	case ViewSessionDetail:
		return a.viewSessionDetail()
	case ViewReport:
		return a.viewReport()
	}
	return ""
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	statusRunning   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	statusComplete  = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusFailed    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusCancelled = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

func (a *App) viewSessionList() string {
	s := titleStyle.Render("figwalk") + "\n\n"

	if a.err != nil {
		s += fmt.Sprintf("Error: %v\n", a.err)
	}

	if len(a.sessions) == 0 {
		s += "No sessions yet. Start one with 'figwalk walk'.\n"
	} else {
		s += "Recent Sessions\n"
		s += "───────────────\n"

		for i, sess := range a.sessions {
			line := formatSessionLine(sess)
			if i == a.selectedIdx {
				line = selectedStyle.Render("▶ " + line)
			} else if sess.Status != models.SessionStatusRunning {
				line = "  " + dimStyle.Render(line)
			} else {
				line = "  " + line
			}
			s += line + "\n"
		}
	}

	s += "\n" + helpStyle.Render("[enter] view  [d] delete  [r] refresh  [q] quit")

	return s
}

func formatSessionLine(sess *models.Session) string {
	status := formatStatus(sess.Status)
	age := storage.FormatTimeAgo(sess.CreatedAt)
	challenge := truncate(sess.Challenge, 35)
	return fmt.Sprintf("%s  %-16s %s  %-8s  %s", sess.ID[:min(8, len(sess.ID))], truncate(sess.FlowName, 16), status, age, challenge)
}

func formatStatus(status models.SessionStatus) string {
	switch status {
	case models.SessionStatusRunning:
		return statusRunning.Render("● running")
	case models.SessionStatusComplete:
		return statusComplete.Render("✓ complete")
	case models.SessionStatusFailed:
		return statusFailed.Render("✗ failed")
	case models.SessionStatusCancelled:
		return statusCancelled.Render("⚠ cancelled")
	default:
		return string(status)
	}
}

func formatRunState(state models.RunState) string {
	switch state {
	case models.RunStateCompleted:
		return statusComplete.Render("✓ completed")
	case models.RunStateHaltedError:
		return statusFailed.Render("✗ error")
	case models.RunStateCancelled:
		return statusCancelled.Render("⚠ cancelled")
	case models.RunStateWalking:
		return statusRunning.Render("● walking")
	default:
		return statusCancelled.Render(string(state))
	}
}

func (a *App) viewSessionDetail() string {
	if a.selected == nil {
		return "No session selected"
	}

	sess := a.selected

	header := fmt.Sprintf("Session %s: %s", sess.ID, sess.FlowName)
	s := titleStyle.Render(header) + "  " + formatStatus(sess.Status) + "\n\n"

	s += labelStyle.Render("Persona:   ") + sess.Persona + "\n"
	s += labelStyle.Render("Challenge: ") + sess.Challenge + "\n"
	if sess.Error != "" {
		s += labelStyle.Render("Error:     ") + statusFailed.Render(sess.Error) + "\n"
	}
	s += "\n"

	s += "Runs\n"
	s += "────\n"

	if len(a.runs) == 0 {
		s += "(no runs recorded)\n"
	} else {
		for i, run := range a.runs {
			score := dimStyle.Render("SUS -")
			if run.SUSScore != nil {
				score = fmt.Sprintf("SUS %.1f", *run.SUSScore)
			}
			line := fmt.Sprintf("%d. %-22s %2d steps  %6s  %s",
				run.Index, formatRunState(run.State), len(run.Steps), models.FormatDuration(run.Duration), score)

			if i == a.selectedRunIdx {
				line = selectedStyle.Render("▶ " + line)
			} else {
				line = "  " + line
			}
			s += line + "\n"
		}
	}

	s += "\n" + helpStyle.Render("[↑/↓] select  [enter] report  [esc] back  [q] quit")

	return s
}

func (a *App) viewReport() string {
	return a.report.View() + "\n\n" + helpStyle.Render("[↑/↓] scroll  [esc] back")
}

// Messages

type sessionsLoadedMsg struct {
	sessions []*models.Session
	err      error
}

type sessionDetailMsg struct {
	session *models.Session
	runs    []*models.Run
	err     error
}

type sessionDeletedMsg struct {
	sessionID string
	err       error
}

// Commands

func (a *App) loadSessions() tea.Msg {
	sessions, err := a.store.ListSessions(50)
	return sessionsLoadedMsg{sessions: sessions, err: err}
}

func (a *App) loadSessionDetail(id string) tea.Cmd {
	return func() tea.Msg {
		sess, err := a.store.GetSession(id)
		if err != nil {
			return sessionDetailMsg{err: err}
		}

		runs, err := a.store.GetRunsForSession(id)
		return sessionDetailMsg{session: sess, runs: runs, err: err}
	}
}

func (a *App) deleteSession(id string) tea.Cmd {
	return func() tea.Msg {
		if err := a.store.DeleteSession(id); err != nil {
			return sessionDeletedMsg{err: err}
		}
		if ws, err := workspace.Open(a.workspacesDir, id); err == nil {
			if err := ws.Remove(); err != nil && !os.IsNotExist(err) {
				return sessionDeletedMsg{sessionID: id, err: err}
			}
		}
		return sessionDeletedMsg{sessionID: id}
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
