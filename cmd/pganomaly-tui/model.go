package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rmax-ai/pganomaly/pkg/client"
)

const (
	pollRate       = time.Second
	fetchTimeout   = 900 * time.Millisecond
	maxEvents      = 20
	viewportHeight = 20
	paneWidth      = 100
)

var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	titleStyle  = lipgloss.NewStyle().Bold(true).Underline(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			Width(paneWidth)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(paneWidth)

	eventTimeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(10)
	eventTypeStyle   = lipgloss.NewStyle().Width(22).Bold(true)
	eventTargetStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))

	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	infoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	phaseStyles = map[string]lipgloss.Style{
		"connecting": infoStyle,
		"baseline":   lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		"scenarios":  lipgloss.NewStyle().Foreground(lipgloss.Color("205")),
		"cleanup":    infoStyle,
		"finished":   passStyle,
		"skipped":    failStyle,
	}
)

// source is the part of the API client the dashboard reads.
type source interface {
	GetStatus(ctx context.Context) ([]client.TargetStatus, bool, error)
	GetEvents(ctx context.Context, opts client.EventsOptions) ([]client.Event, error)
}

type tickMsg time.Time

type dataMsg struct {
	statuses  []client.TargetStatus
	hasStatus bool
	events    []client.Event
	err       error
}

type model struct {
	src       source
	endpoint  string
	spinner   spinner.Model
	viewport  viewport.Model
	statuses  []client.TargetStatus
	hasStatus bool
	events    []client.Event
	err       error
	ready     bool
}

func newViewport(width int) viewport.Model {
	vp := viewport.New(width, viewportHeight)
	vp.Style = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		PaddingRight(2)
	return vp
}

func initialModel(src source, endpoint string) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		src:      src,
		endpoint: endpoint,
		spinner:  s,
		viewport: newViewport(paneWidth),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		fetchData(m.src),
		tick(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		cmds = append(cmds, fetchData(m.src), tick())

	case dataMsg:
		m.err = msg.err
		if msg.err == nil {
			m.statuses = msg.statuses
			m.hasStatus = msg.hasStatus
			m.events = msg.events
			m.updateViewportContent()
		}
		m.ready = true

	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = viewportHeight
		m.ready = true
	}

	return m, tea.Batch(cmds...)
}

func eventStyle(typ string) lipgloss.Style {
	switch {
	case strings.Contains(typ, "skipped") || strings.Contains(typ, "failed"):
		return failStyle
	case strings.HasSuffix(typ, "finished") || strings.HasSuffix(typ, "executed"):
		return passStyle
	}
	return infoStyle
}

// updateViewportContent lists events oldest first so the newest is at the
// bottom, log style. The API returns them newest first.
func (m *model) updateViewportContent() {
	var sb strings.Builder
	for i := len(m.events) - 1; i >= 0; i-- {
		e := m.events[i]
		fmt.Fprintf(&sb, "%s %s %s\n",
			eventTimeStyle.Render(e.TsEvent.Local().Format(time.TimeOnly)),
			eventTypeStyle.Inherit(eventStyle(e.EventType)).Render(e.EventType),
			eventTargetStyle.Render(e.Target),
		)
	}
	m.viewport.SetContent(sb.String())
	m.viewport.GotoBottom()
}

func (m model) statusPane() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Servers") + "\n\n")

	switch {
	case !m.hasStatus:
		sb.WriteString(subtleStyle.Render("The API has no live status source."))
	case len(m.statuses) == 0:
		sb.WriteString(subtleStyle.Render("No demo running."))
	}
	for _, s := range m.statuses {
		style, ok := phaseStyles[s.Phase]
		if !ok {
			style = infoStyle
		}
		line := fmt.Sprintf("• %-16s %s round %d", s.Target, style.Render(fmt.Sprintf("%-10s", s.Phase)), s.Round)
		if s.Scenario != "" {
			line += "  " + s.Scenario
		}
		line += fmt.Sprintf("  scenarios %d", s.ScenariosRun)
		if s.ScenariosFailed > 0 {
			line += failStyle.Render(fmt.Sprintf(" (%d failed)", s.ScenariosFailed))
		}
		if g := s.Generator; g != nil {
			line += subtleStyle.Render(fmt.Sprintf("  bg %d stmts, %d errors", g.StatementsExecuted, g.ErrorsInjected))
		}
		if s.Error != "" {
			line += "\n    " + failStyle.Render(s.Error)
		}
		sb.WriteString(line + "\n")
	}
	return paneStyle.Render(sb.String())
}

func (m model) View() string {
	if !m.ready {
		return fmt.Sprintf("\n%s Connecting to %s...", m.spinner.View(), m.endpoint)
	}

	header := headerStyle.Render(fmt.Sprintf("%s Event Stream", m.spinner.View()))

	var status string
	if m.err != nil {
		status = errorStyle.Render(fmt.Sprintf("Offline: %v", m.err))
	} else {
		status = okStyle.Render(fmt.Sprintf("Online • %s • %d Events • %d Servers", m.endpoint, len(m.events), len(m.statuses)))
	}
	footer := subtleStyle.Render(fmt.Sprintf("\n%s\nPress q to quit", status))

	return lipgloss.JoinVertical(lipgloss.Left, m.statusPane(), header, m.viewport.View(), footer)
}

func fetchData(src source) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		statuses, ok, err := src.GetStatus(ctx)
		if err != nil {
			return dataMsg{err: err}
		}
		events, err := src.GetEvents(ctx, client.EventsOptions{Limit: maxEvents})
		if err != nil {
			return dataMsg{err: err}
		}
		return dataMsg{statuses: statuses, hasStatus: ok, events: events}
	}
}

func tick() tea.Cmd {
	return tea.Tick(pollRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
