// Package statusui provides the Bubble Tea status view.
package statusui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/leetgulag/internal/model"
)

// Snapshot is everything the status view shows.
type Snapshot struct {
	Problem     model.Problem
	Solved      bool
	Mode        model.Mode
	Streaks     map[model.Mode]model.StreakState
	Loading     bool
	Permissions bool
}

// Loader reads the current snapshot.
type Loader func(ctx context.Context) (Snapshot, error)

// Refresher re-provisions after the user restored access.
type Refresher func(ctx context.Context) error

type snapshotMsg struct {
	snap Snapshot
	err  error
}

type refreshedMsg struct{ err error }

var (
	titleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	messageStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	problemStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	warningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	escalatedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")).Bold(true)
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// Model implements the Bubble Tea status UI.
type Model struct {
	load     Loader
	refresh  Refresher
	messages Messages
	spinner  spinner.Model

	snap     Snapshot
	loaded   bool
	checking bool
	checked  bool
	errMsg   string

	width  int
	height int
}

// NewModel constructs a status model.
func NewModel(load Loader, refresh Refresher, messages Messages) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = mutedStyle
	return &Model{
		load:     load,
		refresh:  refresh,
		messages: messages,
		spinner:  sp,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadCmd())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "r":
			return m, m.loadCmd()
		}
		return m, nil
	case snapshotMsg:
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.errMsg = ""
		m.snap = msg.snap
		m.loaded = true
		if !m.snap.Permissions && !m.checked && m.refresh != nil {
			m.checking = true
			m.checked = true
			return m, m.refreshCmd()
		}
		return m, nil
	case refreshedMsg:
		m.checking = false
		if msg.err != nil {
			m.errMsg = msg.err.Error()
		}
		return m, m.loadCmd()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	default:
		return m, nil
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder
	switch {
	case !m.loaded && m.errMsg == "":
		b.WriteString(titleStyle.Render(title) + "\n\n")
		b.WriteString(m.spinner.View() + " " + mutedStyle.Render("Fetching torture problem..."))
	case m.checking:
		b.WriteString(titleStyle.Render(title) + "\n\n")
		b.WriteString(m.spinner.View() + " " + mutedStyle.Render("Checking permissions..."))
	case !m.loaded:
		b.WriteString(titleStyle.Render(title))
	default:
		b.WriteString(Render(m.snap, m.messages, m.contentWidth()))
	}
	if m.errMsg != "" {
		b.WriteString("\n\n" + warningStyle.Render(m.errMsg))
	}
	b.WriteString("\n\n" + footerStyle.Render("r refresh · q quit"))
	if m.width == 0 || m.height == 0 {
		return b.String()
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, b.String())
}

func (m *Model) contentWidth() int {
	if m.width == 0 {
		return 0
	}
	return max(1, int(float64(m.width)*0.70))
}

func (m *Model) loadCmd() tea.Cmd {
	load := m.load
	return func() tea.Msg {
		snap, err := load(context.Background())
		return snapshotMsg{snap: snap, err: err}
	}
}

func (m *Model) refreshCmd() tea.Cmd {
	refresh := m.refresh
	return func() tea.Msg {
		return refreshedMsg{err: refresh(context.Background())}
	}
}

const title = "Welcome to the LeetCode Gulag"

// Render draws a snapshot. A width of zero disables truncation.
func Render(snap Snapshot, messages Messages, width int) string {
	lines := []string{titleStyle.Render(title), ""}
	switch {
	case !snap.Permissions:
		lines = append(lines,
			warningStyle.Render("Problem provisioning is failing."),
			mutedStyle.Render("Check your network access to the practice site, then refresh."))
		return strings.Join(lines, "\n")
	case snap.Loading || !snap.Problem.Valid():
		lines = append(lines, mutedStyle.Render("Fetching torture problem..."))
		return strings.Join(lines, "\n")
	case snap.Mode == model.ModeEscalated:
		lines = append(lines,
			escalatedStyle.Render("! Hyper Torture mode active !"),
			messageStyle.Render(fit(messages.Escalated, width)),
			"",
			problemStyle.Render(fit(snap.Problem.Name, width)),
			mutedStyle.Render(fit(snap.Problem.URL, width)))
	case !snap.Solved:
		lines = append(lines,
			messageStyle.Render(fit(messages.Unsolved, width)),
			"",
			mutedStyle.Render("Today's Question"),
			problemStyle.Render(fit(snap.Problem.Name, width)),
			mutedStyle.Render(fit(snap.Problem.URL, width)))
	default:
		lines = append(lines, messageStyle.Render(fit(messages.Solved, width)))
	}
	st := snap.Streaks[snap.Mode]
	lines = append(lines, "",
		fmt.Sprintf("Current Streak: %d", st.Current),
		fmt.Sprintf("Best Streak: %d", st.Best))
	return strings.Join(lines, "\n")
}

func fit(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}
