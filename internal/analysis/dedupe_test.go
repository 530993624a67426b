package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/patternscope/patternscope/models"
)

func insertRawRec(t *testing.T, store *Store, repoID, title, category string, createdAt time.Time) int64 {
	t.Helper()
	return insertRawRecDesc(t, store, repoID, title, "desc for "+title, category, createdAt)
}

func insertRawRecDesc(t *testing.T, store *Store, repoID, title, desc, category string, createdAt time.Time) int64 {
	t.Helper()
	id, err := store.db.Insert(context.Background(), "recommendations", &models.Recommendation{
		RepositoryID: repoID,
		Title:        title,
		Description:  desc,
		Category:     category,
		Priority:     models.SeverityMedium,
		Status:       models.RecommendationActive,
		TagsJSON:     "[]",
		CreatedAt:    createdAt,
	})
	if err != nil {
		t.Fatalf("insert recommendation: %v", err)
	}
	return id
}

func TestDedupeKeepsNewestOfEachGroup(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	repo := seedRepo(t, store, "dupes")

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	oldID := insertRawRec(t, store, repo.ID, "Fix security issue: secret in source",
		models.IssueCategorySecurity, base)
	newID := insertRawRec(t, store, repo.ID, "Fix security issue: secret in source",
		models.IssueCategorySecurity, base.Add(time.Hour))
	// Different category, same title: not a duplicate.
	otherID := insertRawRec(t, store, repo.ID, "Fix security issue: secret in source",
		models.IssueCategoryPerformance, base)

	d := NewDeduplicator(store, nil)
	result, err := d.Run(ctx)
	if err != nil {
		t.Fatalf("dedupe: %v", err)
	}
	if result.Removed != 1 {
		t.Fatalf("expected to remove 1 duplicate, removed %d", result.Removed)
	}

	active, _ := store.GetActiveRecommendations(ctx, repo.ID, "")
	ids := map[int64]bool{}
	for _, rec := range active {
		ids[rec.ID] = true
	}
	if ids[oldID] {
		t.Fatal("older duplicate survived")
	}
	if !ids[newID] || !ids[otherID] {
		t.Fatalf("wrong survivors: %v", ids)
	}
}

func TestDedupeNormalisesTitleText(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	repo := seedRepo(t, store, "fuzzy")

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	insertRawRecDesc(t, store, repo.ID, "Improve type safety:  any without narrowing",
		"first wording", models.IssueCategoryTypeSafety, base)
	insertRawRecDesc(t, store, repo.ID, "improve TYPE safety: any without   narrowing",
		"second wording", models.IssueCategoryTypeSafety, base.Add(time.Minute))

	d := NewDeduplicator(store, nil)
	result, err := d.RunForRepository(ctx, repo.ID)
	if err != nil {
		t.Fatal(err)
	}
	if result.Removed != 1 || result.Kept != 1 {
		t.Fatalf("case/whitespace variants should collapse: %+v", result)
	}
}

func TestDedupeIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	repo := seedRepo(t, store, "stable")

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		insertRawRec(t, store, repo.ID, "Address performance concern: db call inside range",
			models.IssueCategoryPerformance, base.Add(time.Duration(i)*time.Minute))
	}

	d := NewDeduplicator(store, nil)
	first, err := d.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first.Removed != 2 {
		t.Fatalf("expected 2 removals on first pass, got %d", first.Removed)
	}

	second, err := d.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if second.Removed != 0 {
		t.Fatalf("second pass must remove nothing, removed %d", second.Removed)
	}
}

func TestDedupeMatchesTitleOrDescription(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	repo := seedRepo(t, store, "either")

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	// Same title, differing descriptions: still one group.
	insertRawRecDesc(t, store, repo.ID, "Fix security issue: secret in source",
		"found in auth.go", models.IssueCategorySecurity, base)
	keepTitle := insertRawRecDesc(t, store, repo.ID, "Fix security issue: secret in source",
		"found in config.go", models.IssueCategorySecurity, base.Add(time.Hour))

	// Same description, differing titles: also one group.
	insertRawRecDesc(t, store, repo.ID, "Tighten query building",
		"query built by concatenation", models.IssueCategoryPerformance, base)
	keepDesc := insertRawRecDesc(t, store, repo.ID, "Stop concatenating SQL",
		"query built by concatenation", models.IssueCategoryPerformance, base.Add(time.Hour))

	d := NewDeduplicator(store, nil)
	result, err := d.RunForRepository(ctx, repo.ID)
	if err != nil {
		t.Fatal(err)
	}
	if result.Removed != 2 || result.Kept != 2 {
		t.Fatalf("title-or-description match should collapse both pairs: %+v", result)
	}

	active, _ := store.GetActiveRecommendations(ctx, repo.ID, "")
	ids := map[int64]bool{}
	for _, rec := range active {
		ids[rec.ID] = true
	}
	if !ids[keepTitle] || !ids[keepDesc] {
		t.Fatalf("newest of each group must survive: %v", ids)
	}
}

func TestDedupeCollapsesChainedMatches(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	repo := seedRepo(t, store, "chain")

	// A and B share a title, B and C share a description: all three are
	// one group through B, and only the newest survives.
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	insertRawRecDesc(t, store, repo.ID, "Avoid untyped any",
		"any in client.ts", models.IssueCategoryTypeSafety, base)
	insertRawRecDesc(t, store, repo.ID, "Avoid untyped any",
		"any in api.ts", models.IssueCategoryTypeSafety, base.Add(time.Minute))
	newest := insertRawRecDesc(t, store, repo.ID, "Narrow loose types",
		"any in api.ts", models.IssueCategoryTypeSafety, base.Add(2*time.Minute))

	d := NewDeduplicator(store, nil)
	result, err := d.RunForRepository(ctx, repo.ID)
	if err != nil {
		t.Fatal(err)
	}
	if result.Removed != 2 || result.Kept != 1 {
		t.Fatalf("chained matches should form one group: %+v", result)
	}

	active, _ := store.GetActiveRecommendations(ctx, repo.ID, "")
	if len(active) != 1 || active[0].ID != newest {
		t.Fatalf("expected only the newest record to survive: %+v", active)
	}
}
