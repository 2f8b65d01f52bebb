package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rmax-ai/platformsim/pkg/client"
	"github.com/rmax-ai/platformsim/pkg/hierarchy"
	"github.com/rmax-ai/platformsim/pkg/scoring"
)

const (
	defaultAPI     = "http://127.0.0.1:8095"
	pollRate       = time.Second
	viewportHeight = 12
	barWidth       = 20
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
			Width(100)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(48)

	severityStyles = map[scoring.Severity]lipgloss.Style{
		scoring.SeverityCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		scoring.SeverityHigh:     lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		scoring.SeverityMedium:   lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		scoring.SeverityLow:      lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
	}
	healthStyles = map[hierarchy.Health]lipgloss.Style{
		hierarchy.HealthHealthy:   okStyle,
		hierarchy.HealthDegraded:  lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		hierarchy.HealthUnhealthy: errorStyle,
	}
)

var severityOrder = []scoring.Severity{
	scoring.SeverityCritical,
	scoring.SeverityHigh,
	scoring.SeverityMedium,
	scoring.SeverityLow,
}

type tickMsg time.Time

type dataMsg struct {
	sim  scoring.SimulationState
	plat hierarchy.PlatformState
	err  error
}

type model struct {
	api      *client.Client
	spinner  spinner.Model
	viewport viewport.Model
	sim      scoring.SimulationState
	plat     hierarchy.PlatformState
	err      error
	ready    bool
}

func initialModel(api *client.Client) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		api:      api,
		spinner:  s,
		viewport: newViewport(100),
	}
}

func newViewport(width int) viewport.Model {
	vp := viewport.New(width, viewportHeight)
	vp.Style = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		PaddingRight(2)
	return vp
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		fetchData(m.api),
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
		cmds = append(cmds, fetchData(m.api), tick())

	case dataMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.sim = msg.sim
			m.plat = msg.plat
			m.viewport.SetContent(renderIssues(m.sim.Issues))
		}
		m.ready = true

	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = viewportHeight
	}

	return m, tea.Batch(cmds...)
}

// bar renders value (0-100) as a fixed-width gauge.
func bar(value float64) string {
	filled := int(value / 100 * barWidth)
	if filled < 0 {
		filled = 0
	}
	if filled > barWidth {
		filled = barWidth
	}
	return strings.Repeat("█", filled) + subtleStyle.Render(strings.Repeat("░", barWidth-filled))
}

func renderMetrics(g scoring.GlobalMetrics) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Global Metrics") + "\n\n")
	rows := []struct {
		name  string
		value float64
	}{
		{"User satisfaction", g.UserSatisfaction},
		{"Developer velocity", g.DeveloperVelocity},
		{"Security", g.SecurityScore},
		{"Performance", g.PerformanceScore},
		{"Adoption", g.AdoptionRate},
		{"Technical debt", g.TechnicalDebt},
	}
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%-19s %s %5.1f\n", r.name, bar(r.value), r.value))
	}
	sb.WriteString(fmt.Sprintf("%-19s $%.0f/mo\n", "Total cost", g.TotalCost))
	sb.WriteString(fmt.Sprintf("%-19s %.0f days", "Time to market", g.TimeToMarket))
	return sb.String()
}

func renderIssueCounts(issues []scoring.Issue) string {
	counts := map[scoring.Severity]int{}
	for _, is := range issues {
		counts[is.Severity]++
	}
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Issues by Severity") + "\n\n")
	for _, sev := range severityOrder {
		sb.WriteString(severityStyles[sev].Render(fmt.Sprintf("%-9s %3d", sev, counts[sev])) + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderIssues(issues []scoring.Issue) string {
	if len(issues) == 0 {
		return okStyle.Render("No active issues.")
	}
	sorted := append([]scoring.Issue(nil), issues...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Severity.Multiplier() > sorted[j].Severity.Multiplier()
	})
	var sb strings.Builder
	for _, is := range sorted {
		style := severityStyles[is.Severity]
		sb.WriteString(fmt.Sprintf("%s %s %s\n",
			style.Width(10).Render(strings.ToUpper(string(is.Severity))),
			is.Title,
			subtleStyle.Render(is.Component)))
	}
	return sb.String()
}

func renderNodes(st hierarchy.PlatformState) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Node Utilization") + "\n\n")
	shown := 0
	for _, n := range st.Nodes {
		if n.Resources == nil {
			continue
		}
		style, ok := healthStyles[n.Status.Health]
		if !ok {
			style = subtleStyle
		}
		sb.WriteString(fmt.Sprintf("%-16.16s %s %5.1f%% %s\n",
			n.Name, bar(n.Status.Utilization), n.Status.Utilization, style.Render(string(n.Status.Health))))
		shown++
	}
	if shown == 0 {
		sb.WriteString(subtleStyle.Render("No nodes with resources."))
	}
	m := st.Metrics
	sb.WriteString(fmt.Sprintf("\nApps %d • Health %.0f • Maturity %.0f • $%.0f/mo",
		m.ApplicationCount, m.ServiceHealth, m.PlatformMaturity, m.TotalCost))
	return sb.String()
}

func (m model) View() string {
	if !m.ready {
		return fmt.Sprintf("\n%s Connecting...", m.spinner.View())
	}

	top := lipgloss.JoinHorizontal(lipgloss.Top,
		paneStyle.Render(renderMetrics(m.sim.Metrics)),
		paneStyle.Render(renderIssueCounts(m.sim.Issues)),
	)
	nodes := paneStyle.Width(98).Render(renderNodes(m.plat))
	header := headerStyle.Render(fmt.Sprintf("%s Active Issues", m.spinner.View()))

	var status string
	if m.err != nil {
		status = errorStyle.Render(fmt.Sprintf("Offline: %v", m.err))
	} else {
		state := "paused"
		if m.sim.Running {
			state = fmt.Sprintf("running %dx", m.sim.Speed)
		}
		status = okStyle.Render(fmt.Sprintf("Online • %s • %d components • %d nodes", state, len(m.sim.Components), len(m.plat.Nodes)))
	}
	footer := subtleStyle.Render(fmt.Sprintf("\n%s\nPress q to quit", status))

	return lipgloss.JoinVertical(lipgloss.Left, top, nodes, header, m.viewport.View(), footer)
}

func fetchData(api *client.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 800*time.Millisecond)
		defer cancel()

		sim, err := api.Simulation(ctx)
		if err != nil {
			return dataMsg{err: err}
		}
		plat, err := api.Platform(ctx)
		if err != nil {
			return dataMsg{err: err}
		}
		return dataMsg{sim: sim, plat: plat}
	}
}

func tick() tea.Cmd {
	return tea.Tick(pollRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func main() {
	api := os.Getenv("PLATFORMSIM_API")
	if api == "" {
		api = defaultAPI
	}
	flag.StringVar(&api, "api", api, "base URL of platformsim-d")
	flag.Parse()

	p := tea.NewProgram(initialModel(client.NewClient(api).WithTracePrefix("tui")), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
