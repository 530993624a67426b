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

// RecommendationsModel lists active recommendations, newest first, with a
// category filter cycled with the f key.
type RecommendationsModel struct {
	db       database.DB
	recs     []models.Recommendation
	category string
	width    int
	height   int
	loading  bool
}

type recsLoadedMsg struct{ recs []models.Recommendation }

var recCategories = []string{"", models.IssueCategorySecurity, models.IssueCategoryTypeSafety, models.IssueCategoryPerformance}

// NewRecommendationsModel creates a RecommendationsModel.
func NewRecommendationsModel(db database.DB) RecommendationsModel {
	return RecommendationsModel{db: db, loading: true}
}

func (m RecommendationsModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m RecommendationsModel) loadCmd() tea.Cmd {
	category := m.category
	return func() tea.Msg {
		ctx := context.Background()
		query := `SELECT id, repository_id, title, description, category, priority, status,
			issue_signature, tags, created_at
			FROM recommendations WHERE status = 'active'`
		args := []interface{}{}
		if category != "" {
			query += ` AND category = ?`
			args = append(args, category)
		}
		query += ` ORDER BY created_at DESC, id DESC LIMIT 100`
		var recs []models.Recommendation
		_ = m.db.Select(ctx, &recs, query, args...)
		return recsLoadedMsg{recs: recs}
	}
}

func (m RecommendationsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case recsLoadedMsg:
		m.recs = msg.recs
		m.loading = false
		return m, tea.Tick(10*time.Second, func(t time.Time) tea.Msg {
			return m.loadCmd()()
		})
	case tea.KeyMsg:
		switch msg.String() {
		case "r":
			m.loading = true
			return m, m.loadCmd()
		case "f":
			m.category = nextCategory(m.category)
			m.loading = true
			return m, m.loadCmd()
		}
	}
	return m, nil
}

func nextCategory(current string) string {
	for i, c := range recCategories {
		if c == current {
			return recCategories[(i+1)%len(recCategories)]
		}
	}
	return ""
}

func (m *RecommendationsModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

func (m RecommendationsModel) View() string {
	filter := m.category
	if filter == "" {
		filter = "all"
	}
	header := titleStyle.Render("Recommendations") + "  " +
		mutedBadgeStyle.Render("filter: "+filter)

	if m.loading && len(m.recs) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, header, "",
			dimStyle.Render("Loading..."))
	}

	lineLimit := m.height - 8
	if lineLimit < 5 {
		lineLimit = 5
	}
	rows := ""
	for i, rec := range m.recs {
		if i >= lineLimit {
			break
		}
		row := lipgloss.JoinHorizontal(lipgloss.Left,
			lipgloss.NewStyle().Width(10).Render(priorityStyle(string(rec.Priority)).Render(string(rec.Priority))),
			lipgloss.NewStyle().Width(14).Foreground(slate).Render(truncate(rec.Category, 12)),
			lipgloss.NewStyle().Width(44).Foreground(ink).Render(truncate(rec.Title, 42)),
			dimStyle.Render(truncate(rec.RepositoryID, 30)),
		)
		rows += row + "\n"
	}
	if len(m.recs) == 0 {
		rows = dimStyle.Render("No active recommendations. Nice.\n")
	}

	footer := dimStyle.Render(fmt.Sprintf("%d shown · f to filter · r to refresh", len(m.recs)))
	return lipgloss.JoinVertical(lipgloss.Left, header, "", rows, footer)
}
