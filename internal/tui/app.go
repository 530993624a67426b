// Package tui is the terminal dashboard built on bubbletea.
package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/patternscope/patternscope/internal/config"
	"github.com/patternscope/patternscope/internal/database"
)

// Tab represents a TUI navigation tab.
type Tab int

const (
	TabDashboard Tab = iota
	TabRecommendations
)

var tabNames = []string{"Dashboard", "Recommendations"}

// App is the root bubbletea model.
type App struct {
	cfg             *config.Config
	db              database.DB
	width           int
	height          int
	activeTab       Tab
	dashboard       DashboardModel
	recommendations RecommendationsModel
}

// NewApp creates the TUI application.
func NewApp(cfg *config.Config, db database.DB) *App {
	return &App{
		cfg:             cfg,
		db:              db,
		dashboard:       NewDashboardModel(db),
		recommendations: NewRecommendationsModel(db),
	}
}

// Run starts the bubbletea program.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.dashboard.Init(),
		a.recommendations.Init(),
	)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		contentW := msg.Width - 2
		if contentW < 20 {
			contentW = 20
		}
		contentH := msg.Height - 7
		if contentH < 8 {
			contentH = 8
		}
		a.dashboard.SetSize(contentW, contentH)
		a.recommendations.SetSize(contentW, contentH)

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return a, tea.Quit
		case "1":
			a.activeTab = TabDashboard
		case "2":
			a.activeTab = TabRecommendations
		case "tab":
			a.activeTab = (a.activeTab + 1) % Tab(len(tabNames))
		}
	}

	// Delegate to active view.
	switch a.activeTab {
	case TabDashboard:
		newDash, cmd := a.dashboard.Update(msg)
		a.dashboard = newDash.(DashboardModel)
		cmds = append(cmds, cmd)
	case TabRecommendations:
		newRecs, cmd := a.recommendations.Update(msg)
		a.recommendations = newRecs.(RecommendationsModel)
		cmds = append(cmds, cmd)
	}

	return a, tea.Batch(cmds...)
}

// View implements tea.Model.
func (a *App) View() string {
	title := titleStyle.Render("patternscope")

	tabs := ""
	for i, name := range tabNames {
		style := tabStyle
		if Tab(i) == a.activeTab {
			style = activeTabStyle
		}
		tabs = lipgloss.JoinHorizontal(lipgloss.Top, tabs, style.Render(fmt.Sprintf("%d %s", i+1, name)))
	}
	header := lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", tabs)

	var content string
	switch a.activeTab {
	case TabDashboard:
		content = a.dashboard.View()
	case TabRecommendations:
		content = a.recommendations.View()
	}

	statusBar := statusBarStyle.Width(max(20, a.width)).Render(
		"tab/1-2 switch · r refresh · q quit")

	return lipgloss.JoinVertical(lipgloss.Left, header, "", content, statusBar)
}
