package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/stopwatch"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mpataki/figwalk/internal/models"
	"github.com/mpataki/figwalk/internal/orchestrator"
)

// Sender delivers messages to a running program; *tea.Program is one.
type Sender interface {
	Send(msg tea.Msg)
}

// Observer forwards orchestrator progress to a WalkModel. It copies what
// it sends so the model never shares state with the walking goroutine.
type Observer struct {
	sender Sender
}

func NewObserver(sender Sender) *Observer {
	return &Observer{sender: sender}
}

func (o *Observer) RunStarted(run *models.Run) {
	o.sender.Send(runStartedMsg{index: run.Index})
}

func (o *Observer) StepRecorded(run *models.Run, step *models.Step) {
	o.sender.Send(stepRecordedMsg{run: run.Index, step: *step})
}

func (o *Observer) RunFinished(run *models.Run) {
	summary := runSummary{
		index:    run.Index,
		state:    run.State,
		steps:    len(run.Steps),
		duration: run.Duration,
		err:      run.Error,
	}
	if run.SUSScore != nil {
		score := *run.SUSScore
		summary.sus = &score
	}
	o.sender.Send(runFinishedMsg{summary})
}

// SessionDoneMsg ends the live view once Execute returns.
type SessionDoneMsg struct {
	Result *orchestrator.Result
	Err    error
}

type runStartedMsg struct {
	index int
}

type stepRecordedMsg struct {
	run  int
	step models.Step
}

type runFinishedMsg struct {
	summary runSummary
}

type runSummary struct {
	index    int
	state    models.RunState
	steps    int
	sus      *float64
	duration time.Duration
	err      string
}

const maxLogLines = 12

// WalkModel shows a session while it runs: elapsed time, the current run,
// a log of visited screens, and finished runs. 'c' requests cancellation.
type WalkModel struct {
	title     string
	totalRuns int
	cancel    *models.CancelToken

	spinner   spinner.Model
	stopwatch stopwatch.Model

	currentRun int
	log        []string
	finished   []runSummary
	cancelling bool
	done       bool
	result     *orchestrator.Result
	err        error
}

func NewWalkModel(title string, totalRuns int, cancel *models.CancelToken) *WalkModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = statusRunning

	return &WalkModel{
		title:     title,
		totalRuns: totalRuns,
		cancel:    cancel,
		spinner:   sp,
		stopwatch: stopwatch.NewWithInterval(time.Second),
	}
}

func (m *WalkModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.stopwatch.Init())
}

// Result is the session outcome, nil until the session is done.
func (m *WalkModel) Result() (*orchestrator.Result, error) {
	return m.result, m.err
}

func (m *WalkModel) Elapsed() time.Duration {
	return m.stopwatch.Elapsed()
}

func (m *WalkModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "c":
			if !m.done && !m.cancelling {
				m.cancel.Cancel()
				m.cancelling = true
			}
		case "ctrl+c":
			m.cancel.Cancel()
			return m, tea.Quit
		case "q", "esc":
			if m.done {
				return m, tea.Quit
			}
		}
		return m, nil

	case runStartedMsg:
		m.currentRun = msg.index
		m.appendLog(fmt.Sprintf("Run %d/%d started", msg.index, m.totalRuns))
		return m, nil

	case stepRecordedMsg:
		line := fmt.Sprintf("  %d. %s", msg.step.Index, msg.step.NodeName)
		if reply := lastLine(msg.step.Response); reply != "" {
			line += dimStyle.Render("  " + truncate(reply, 60))
		}
		m.appendLog(line)
		return m, nil

	case runFinishedMsg:
		m.finished = append(m.finished, msg.summary)
		m.appendLog(fmt.Sprintf("Run %d finished: %s", msg.summary.index, msg.summary.state))
		return m, nil

	case SessionDoneMsg:
		m.done = true
		m.result = msg.Result
		m.err = msg.Err
		return m, m.stopwatch.Stop()

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.stopwatch, cmd = m.stopwatch.Update(msg)
	return m, cmd
}

func (m *WalkModel) appendLog(line string) {
	m.log = append(m.log, line)
	if len(m.log) > maxLogLines {
		m.log = m.log[len(m.log)-maxLogLines:]
	}
}

func (m *WalkModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render(models.FormatDuration(m.stopwatch.Elapsed())))
	b.WriteString("\n\n")

	switch {
	case m.done && m.err != nil:
		b.WriteString(statusFailed.Render("✗ " + m.err.Error()))
	case m.done:
		b.WriteString(statusComplete.Render("✓ Session finished"))
	case m.cancelling:
		b.WriteString(statusCancelled.Render("⚠ Cancelling after the current step..."))
	case m.currentRun == 0:
		b.WriteString(m.spinner.View() + " Starting")
	default:
		b.WriteString(fmt.Sprintf("%s Run %d of %d", m.spinner.View(), m.currentRun, m.totalRuns))
	}
	b.WriteString("\n\n")

	for _, line := range m.log {
		b.WriteString(line)
		b.WriteString("\n")
	}

	if len(m.finished) > 0 {
		b.WriteString("\nRuns\n────\n")
		for _, r := range m.finished {
			score := "-"
			if r.sus != nil {
				score = fmt.Sprintf("%.1f", *r.sus)
			}
			line := fmt.Sprintf("%d. %-22s %2d steps  %6s  SUS %s", r.index, formatRunState(r.state), r.steps, models.FormatDuration(r.duration), score)
			if r.err != "" {
				line += "  " + statusFailed.Render(truncate(r.err, 50))
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	if m.done && m.result != nil && m.result.LastError != "" {
		b.WriteString("\n" + labelStyle.Render("Last error: ") + m.result.LastError + "\n")
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(helpStyle.Render("[q] quit"))
	} else {
		b.WriteString(helpStyle.Render("[c] cancel  [ctrl+c] abort"))
	}

	return b.String()
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
