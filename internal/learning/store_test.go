package learning

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/orbd/internal/config"
	"github.com/fyrsmithlabs/orbd/internal/insight"
	"github.com/fyrsmithlabs/orbd/internal/pattern"
)

var storeTestBase = time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

func openLearningBackends(t *testing.T) map[string]Store {
	t.Helper()

	fileStore, err := NewFileStore(filepath.Join(t.TempDir(), "learning.jsonl"))
	require.NoError(t, err)

	sqliteStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "learning.db"))
	require.NoError(t, err)

	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fileStore,
		"sqlite": sqliteStore,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func makePattern(typ pattern.Type, confidence float64, detectedAt time.Time) *pattern.Pattern {
	return &pattern.Pattern{
		ID:         uuid.New().String(),
		Type:       typ,
		DetectedAt: detectedAt,
		Confidence: confidence,
		Data:       pattern.Data{Actions: []string{"git-commit"}, Frequency: 47},
		EventIDs:   []string{"e1", "e2"},
		EventCount: 2,
		Status:     pattern.StatusDetected,
	}
}

func makeInsight(patternID string, confidence float64, generatedAt time.Time) *insight.Insight {
	return &insight.Insight{
		ID:             uuid.New().String(),
		PatternID:      patternID,
		GeneratedAt:    generatedAt,
		Confidence:     confidence,
		Title:          "Frequent git-commit Detected",
		Description:    "You performed git-commit 47 times in this window.",
		Recommendation: "Consider creating a shortcut.",
	}
}

func makeAction(status ActionStatus, createdAt time.Time) *Action {
	return &Action{
		ID:             uuid.New().String(),
		Type:           ActionCreateShortcut,
		InsightID:      "ins-1",
		Confidence:     0.5,
		Target:         "shortcut.git-commit",
		SuggestedValue: "ctrl+shift+c",
		Reason:         "git-commit is frequent",
		Status:         status,
		CreatedAt:      createdAt,
	}
}

func TestStorePatterns(t *testing.T) {
	ctx := context.Background()

	for name, store := range openLearningBackends(t) {
		t.Run(name, func(t *testing.T) {
			p1 := makePattern(pattern.TypeFrequentAction, 0.5, storeTestBase)
			p2 := makePattern(pattern.TypeErrorPattern, 0.9, storeTestBase.Add(time.Hour))
			require.NoError(t, store.SavePattern(ctx, p1))
			require.NoError(t, store.SavePattern(ctx, p2))

			t.Run("newest first", func(t *testing.T) {
				got, err := store.GetPatterns(ctx, PatternFilter{})
				require.NoError(t, err)
				require.Len(t, got, 2)
				assert.Equal(t, p2.ID, got[0].ID)
				assert.Equal(t, p1.ID, got[1].ID)
				assert.Equal(t, []string{"git-commit"}, got[1].Data.Actions)
				assert.Equal(t, []string{"e1", "e2"}, got[1].EventIDs)
			})

			t.Run("filter by type and confidence", func(t *testing.T) {
				got, err := store.GetPatterns(ctx, PatternFilter{Types: []pattern.Type{pattern.TypeErrorPattern}})
				require.NoError(t, err)
				require.Len(t, got, 1)
				assert.Equal(t, p2.ID, got[0].ID)

				got, err = store.GetPatterns(ctx, PatternFilter{MinConfidence: 0.8})
				require.NoError(t, err)
				require.Len(t, got, 1)
				assert.Equal(t, p2.ID, got[0].ID)
			})

			t.Run("save is an upsert", func(t *testing.T) {
				p1.Status = pattern.StatusValidated
				require.NoError(t, store.SavePattern(ctx, p1))

				got, err := store.GetPatterns(ctx, PatternFilter{})
				require.NoError(t, err)
				require.Len(t, got, 2)

				got, err = store.GetPatterns(ctx, PatternFilter{Statuses: []pattern.Status{pattern.StatusValidated}})
				require.NoError(t, err)
				require.Len(t, got, 1)
				assert.Equal(t, p1.ID, got[0].ID)
			})

			t.Run("limit", func(t *testing.T) {
				got, err := store.GetPatterns(ctx, PatternFilter{Limit: 1})
				require.NoError(t, err)
				require.Len(t, got, 1)
				assert.Equal(t, p2.ID, got[0].ID)
			})
		})
	}
}

func TestStoreInsights(t *testing.T) {
	ctx := context.Background()

	for name, store := range openLearningBackends(t) {
		t.Run(name, func(t *testing.T) {
			i1 := makeInsight("p1", 0.5, storeTestBase)
			i2 := makeInsight("p2", 0.9, storeTestBase.Add(time.Hour))
			require.NoError(t, store.SaveInsight(ctx, i1))
			require.NoError(t, store.SaveInsight(ctx, i2))

			got, err := store.GetInsights(ctx, InsightFilter{})
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, i2.ID, got[0].ID)

			got, err = store.GetInsights(ctx, InsightFilter{PatternID: "p1"})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, i1.ID, got[0].ID)
			assert.Equal(t, "Frequent git-commit Detected", got[0].Title)

			i1.UserFeedback = "helpful"
			require.NoError(t, store.SaveInsight(ctx, i1))
			got, err = store.GetInsights(ctx, InsightFilter{PatternID: "p1"})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "helpful", got[0].UserFeedback)
		})
	}
}

func TestStoreActions(t *testing.T) {
	ctx := context.Background()

	for name, store := range openLearningBackends(t) {
		t.Run(name, func(t *testing.T) {
			a1 := makeAction(StatusPending, storeTestBase)
			a2 := makeAction(StatusPending, storeTestBase.Add(time.Hour))
			a2.Type = ActionRecommendMode
			require.NoError(t, store.SaveAction(ctx, a1))
			require.NoError(t, store.SaveAction(ctx, a2))

			t.Run("get by id", func(t *testing.T) {
				got, err := store.GetAction(ctx, a1.ID)
				require.NoError(t, err)
				assert.Equal(t, a1.Target, got.Target)
				assert.Equal(t, "ctrl+shift+c", got.SuggestedValue)

				_, err = store.GetAction(ctx, "missing")
				require.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("list filters", func(t *testing.T) {
				got, err := store.GetActions(ctx, ActionFilter{})
				require.NoError(t, err)
				require.Len(t, got, 2)
				assert.Equal(t, a2.ID, got[0].ID)

				got, err = store.GetActions(ctx, ActionFilter{Types: []ActionType{ActionRecommendMode}})
				require.NoError(t, err)
				require.Len(t, got, 1)
				assert.Equal(t, a2.ID, got[0].ID)

				got, err = store.GetActions(ctx, ActionFilter{Statuses: []ActionStatus{StatusApplied}})
				require.NoError(t, err)
				assert.Empty(t, got)
			})

			t.Run("upsert preserves identity", func(t *testing.T) {
				appliedAt := storeTestBase.Add(2 * time.Hour)
				a1.Status = StatusApplied
				a1.AppliedAt = &appliedAt
				require.NoError(t, store.SaveAction(ctx, a1))

				got, err := store.GetAction(ctx, a1.ID)
				require.NoError(t, err)
				assert.Equal(t, StatusApplied, got.Status)
				require.NotNil(t, got.AppliedAt)
				assert.True(t, got.AppliedAt.Equal(appliedAt))

				all, err := store.GetActions(ctx, ActionFilter{})
				require.NoError(t, err)
				assert.Len(t, all, 2)
			})
		})
	}
}

func TestFileStoreReplayKeepsLatest(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "learning.jsonl")

	s, err := NewFileStore(path)
	require.NoError(t, err)

	a := makeAction(StatusPending, storeTestBase)
	require.NoError(t, s.SaveAction(ctx, a))
	a.Status = StatusRejected
	require.NoError(t, s.SaveAction(ctx, a))

	p := makePattern(pattern.TypeFrequentAction, 0.5, storeTestBase)
	require.NoError(t, s.SavePattern(ctx, p))
	require.NoError(t, s.Close())

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetAction(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, got.Status)

	patterns, err := reopened.GetPatterns(ctx, PatternFilter{})
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, p.ID, patterns[0].ID)
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "learning.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)

	p := makePattern(pattern.TypeRiskThreshold, 0.375, storeTestBase)
	p.Data = pattern.Data{Modes: []string{"focus"}, ApprovalRate: 0.5, Context: "mode:focus", SampleSize: 6}
	require.NoError(t, s.SavePattern(ctx, p))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetPatterns(ctx, PatternFilter{Types: []pattern.Type{pattern.TypeRiskThreshold}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, p.ID, got[0].ID)
	assert.Equal(t, "mode:focus", got[0].Data.Context)
	assert.InDelta(t, 0.5, got[0].Data.ApprovalRate, 1e-9)
}

func TestLearningStoreFactory(t *testing.T) {
	cases := []struct {
		name    string
		cfg     config.StoreConfig
		wantErr bool
	}{
		{"memory", config.StoreConfig{Backend: "memory"}, false},
		{"file", config.StoreConfig{Backend: "file"}, false},
		{"sqlite", config.StoreConfig{Backend: "sqlite"}, false},
		{"default is file", config.StoreConfig{}, false},
		{"unknown", config.StoreConfig{Backend: "postgres"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg
			if cfg.Backend != "memory" && !tc.wantErr {
				ext := ".jsonl"
				if cfg.Backend == "sqlite" {
					ext = ".db"
				}
				cfg.Path = filepath.Join(t.TempDir(), "learning"+ext)
			}
			store, err := NewStore(cfg, nil)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NoError(t, store.Close())
		})
	}
}

func TestStoreGetByID(t *testing.T) {
	ctx := context.Background()

	for name, store := range openLearningBackends(t) {
		t.Run(name, func(t *testing.T) {
			p := makePattern(pattern.TypeFrequentAction, 0.5, storeTestBase)
			require.NoError(t, store.SavePattern(ctx, p))

			got, err := store.GetPattern(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, p.ID, got.ID)
			assert.Equal(t, p.Type, got.Type)
			assert.Equal(t, p.Data.Actions, got.Data.Actions)

			_, err = store.GetPattern(ctx, "missing")
			require.ErrorIs(t, err, ErrNotFound)

			ins := makeInsight(p.ID, 0.5, storeTestBase)
			require.NoError(t, store.SaveInsight(ctx, ins))

			gotIns, err := store.GetInsight(ctx, ins.ID)
			require.NoError(t, err)
			assert.Equal(t, ins.ID, gotIns.ID)
			assert.Equal(t, p.ID, gotIns.PatternID)

			_, err = store.GetInsight(ctx, "missing")
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreSubSecondOrdering(t *testing.T) {
	ctx := context.Background()

	for name, store := range openLearningBackends(t) {
		t.Run(name, func(t *testing.T) {
			early := makePattern(pattern.TypeFrequentAction, 0.5, storeTestBase.Add(100*time.Millisecond))
			late := makePattern(pattern.TypeErrorPattern, 0.9, storeTestBase.Add(150*time.Millisecond))
			require.NoError(t, store.SavePattern(ctx, early))
			require.NoError(t, store.SavePattern(ctx, late))

			got, err := store.GetPatterns(ctx, PatternFilter{})
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, late.ID, got[0].ID)
			assert.Equal(t, early.ID, got[1].ID)

			got, err = store.GetPatterns(ctx, PatternFilter{Since: storeTestBase.Add(120 * time.Millisecond)})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, late.ID, got[0].ID)
		})
	}
}
