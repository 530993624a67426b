package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/patternscope/patternscope/internal/database"
	"github.com/patternscope/patternscope/models"
)

// DashboardModel shows the overview: tracked repositories with their
// analysis state, plus recent jobs.
type DashboardModel struct {
	db       database.DB
	repos    []models.Repository
	jobs     []models.AnalysisJob
	width    int
	height   int
	lastLoad time.Time
	loading  bool
}

// dashLoadedMsg carries loaded repositories and jobs.
type dashLoadedMsg struct {
	repos []models.Repository
	jobs  []models.AnalysisJob
}

// NewDashboardModel creates a DashboardModel.
func NewDashboardModel(db database.DB) DashboardModel {
	return DashboardModel{db: db, loading: true}
}

func (d DashboardModel) Init() tea.Cmd {
	return d.loadCmd()
}

func (d DashboardModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		var repos []models.Repository
		_ = d.db.Select(ctx, &repos,
			`SELECT id, provider, owner, name, full_name, clone_url, default_branch,
			        language, tech_stack, framework, analysis_status, patterns_count,
			        last_analyzed, created_at
			 FROM repositories ORDER BY full_name LIMIT 50`)
		var jobs []models.AnalysisJob
		_ = d.db.Select(ctx, &jobs,
			`SELECT id, repository_id, job_type, status, progress, started_at,
			        completed_at, results_json, error_msg, created_at
			 FROM analysis_jobs ORDER BY created_at DESC LIMIT 20`)
		return dashLoadedMsg{repos: repos, jobs: jobs}
	}
}

func (d DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dashLoadedMsg:
		d.repos = msg.repos
		d.jobs = msg.jobs
		d.loading = false
		d.lastLoad = time.Now()
		// Refresh every 10 seconds.
		return d, tea.Tick(10*time.Second, func(t time.Time) tea.Msg {
			return d.loadCmd()()
		})
	case tea.KeyMsg:
		if msg.String() == "r" {
			d.loading = true
			return d, d.loadCmd()
		}
	}
	return d, nil
}

func (d *DashboardModel) SetSize(w, h int) {
	d.width = w
	d.height = h
}

func (d DashboardModel) View() string {
	if d.loading && len(d.repos) == 0 {
		return panelStyle.Width(max(20, d.width-2)).Render("Loading repositories...")
	}

	// Summary counts.
	var analyzed, failed, pending, patterns int
	for _, r := range d.repos {
		switch r.AnalysisStatus {
		case models.AnalysisStatusCompleted:
			analyzed++
		case models.AnalysisStatusFailed:
			failed++
		default:
			pending++
		}
		patterns += r.PatternsCount
	}

	cardW := 18
	if d.width >= 100 {
		cardW = 20
	}
	summary := lipgloss.JoinHorizontal(lipgloss.Top,
		renderCounter("Analyzed", analyzed, okStyle, cardW),
		renderCounter("Pending", pending, mediumStyle, cardW),
		renderCounter("Failed", failed, criticalStyle, cardW),
		renderCounter("Patterns", patterns, highStyle, cardW),
	)

	lineLimit := d.height - 12
	if lineLimit < 5 {
		lineLimit = 5
	}
	rows := ""
	for i, r := range d.repos {
		if i >= lineLimit {
			break
		}
		statusFmt := mutedBadgeStyle.Render(r.AnalysisStatus)
		switch r.AnalysisStatus {
		case models.AnalysisStatusCompleted:
			statusFmt = lipgloss.NewStyle().Foreground(bgDark).Background(green).Padding(0, 1).Render(r.AnalysisStatus)
		case models.AnalysisStatusFailed:
			statusFmt = lipgloss.NewStyle().Foreground(bgDark).Background(red).Padding(0, 1).Render(r.AnalysisStatus)
		case models.AnalysisStatusAnalyzing:
			statusFmt = lipgloss.NewStyle().Foreground(bgDark).Background(blue).Padding(0, 1).Render(r.AnalysisStatus)
		}
		detail := fmt.Sprintf("%s  patterns:%d", r.Language, r.PatternsCount)
		row := lipgloss.JoinHorizontal(lipgloss.Left,
			lipgloss.NewStyle().Width(36).Foreground(ink).Render(truncate(r.FullName, 34)),
			lipgloss.NewStyle().Width(14).Foreground(slate).Render(truncate(r.Framework, 12)),
			lipgloss.NewStyle().Width(14).Render(statusFmt),
			dimStyle.Render(detail),
		)
		rows += row + "\n"
	}

	if len(d.repos) == 0 {
		rows = dimStyle.Render("No repositories yet. Run: patternscope repo add owner/name\n")
	}

	updated := "never"
	if !d.lastLoad.IsZero() {
		updated = d.lastLoad.Format("15:04:05")
	}
	footer := dimStyle.Render(fmt.Sprintf("updated %s · press r to refresh", updated))

	return lipgloss.JoinVertical(lipgloss.Left, summary, "", rows, footer)
}

func renderCounter(label string, n int, style lipgloss.Style, width int) string {
	return panelStyle.Width(width).Render(
		style.Render(fmt.Sprintf("%d", n)) + "\n" + dimStyle.Render(label))
}
