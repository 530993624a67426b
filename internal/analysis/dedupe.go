package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/patternscope/patternscope/internal/recommend"
	"github.com/patternscope/patternscope/models"
)

// Deduplicator collapses equivalent active recommendations that accrued
// across repeated scans, keeping only the newest record of each group.
type Deduplicator struct {
	store  *Store
	logger *slog.Logger
}

// NewDeduplicator creates a Deduplicator over the store.
func NewDeduplicator(store *Store, logger *slog.Logger) *Deduplicator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deduplicator{store: store, logger: logger}
}

// DedupeResult summarises one deduplication pass.
type DedupeResult struct {
	Scanned int `json:"scanned"`
	Removed int `json:"removed"`
	Kept    int `json:"kept"`
}

// Run removes duplicate active recommendations across all repositories.
// Two recommendations are duplicates when they share a repository and a
// category and their normalised titles or normalised descriptions match.
// The newest record of each group survives; running Run again immediately
// removes nothing.
func (d *Deduplicator) Run(ctx context.Context) (*DedupeResult, error) {
	repos, err := d.store.ListRepositories(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing repositories: %w", err)
	}

	result := &DedupeResult{}
	for i := range repos {
		res, err := d.RunForRepository(ctx, repos[i].ID)
		if err != nil {
			return result, err
		}
		result.Scanned += res.Scanned
		result.Removed += res.Removed
		result.Kept += res.Kept
	}
	d.logger.Info("recommendation dedupe finished",
		"scanned", result.Scanned, "removed", result.Removed)
	return result, nil
}

// RunForRepository deduplicates the active recommendations of a single
// repository.
func (d *Deduplicator) RunForRepository(ctx context.Context, repositoryID string) (*DedupeResult, error) {
	recs, err := d.store.GetActiveRecommendations(ctx, repositoryID, "")
	if err != nil {
		return nil, fmt.Errorf("loading recommendations for %s: %w", repositoryID, err)
	}

	result := &DedupeResult{Scanned: len(recs)}

	// Union-find over the records. Two recommendations join one group
	// when they share a category and their normalised titles match, or
	// their normalised descriptions do. The OR makes equivalence
	// transitive through chains of partial matches.
	parent := make([]int, len(recs))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	byKey := make(map[string]int)
	link := func(key string, i int) {
		if j, ok := byKey[key]; ok {
			ri, rj := find(i), find(j)
			if ri != rj {
				parent[ri] = rj
			}
			return
		}
		byKey[key] = i
	}
	for i := range recs {
		// Empty normalised text carries no identity; never merge on it.
		if title := recommend.NormalizeText(recs[i].Title); title != "" {
			link(recs[i].Category+"|t|"+title, i)
		}
		if desc := recommend.NormalizeText(recs[i].Description); desc != "" {
			link(recs[i].Category+"|d|"+desc, i)
		}
	}

	newest := make(map[int]int)
	var remove []int64
	for i := range recs {
		root := find(i)
		j, seen := newest[root]
		if !seen {
			newest[root] = i
			continue
		}
		// Keep the newer record. Creation time breaks first, the
		// autoincrement id breaks ties within the same timestamp.
		if newerRecommendation(&recs[i], &recs[j]) {
			remove = append(remove, recs[j].ID)
			newest[root] = i
		} else {
			remove = append(remove, recs[i].ID)
		}
	}

	if len(remove) > 0 {
		if err := d.store.DeleteRecommendations(ctx, remove); err != nil {
			return result, fmt.Errorf("deleting duplicate recommendations: %w", err)
		}
	}
	result.Removed = len(remove)
	result.Kept = len(newest)
	return result, nil
}

func newerRecommendation(a, b *models.Recommendation) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
