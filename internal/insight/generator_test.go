package insight

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/orbd/internal/pattern"
)

func TestGenerateFrequentAction(t *testing.T) {
	g := NewGenerator(zap.NewNop())

	p := &pattern.Pattern{
		ID:         "p1",
		Type:       pattern.TypeFrequentAction,
		Confidence: 0.5,
		Data: pattern.Data{
			Actions:   []string{"git-commit"},
			Frequency: 47,
			AvgPerDay: 6.714,
		},
	}

	ins := g.Generate(p)
	require.NotNil(t, ins)
	assert.NotEmpty(t, ins.ID)
	assert.Equal(t, "p1", ins.PatternID)
	assert.Equal(t, 0.5, ins.Confidence)
	assert.Equal(t, "Frequent git-commit Detected", ins.Title)
	assert.Contains(t, ins.Description, "47")
	assert.Contains(t, ins.Description, "6.7")
	assert.Contains(t, ins.Recommendation, "git-commit")
	assert.False(t, ins.GeneratedAt.IsZero())
}

func TestGenerateTemplates(t *testing.T) {
	g := NewGenerator(zap.NewNop())

	cases := []struct {
		name        string
		p           pattern.Pattern
		wantTitle   string
		inDesc      []string
		inRecommend string
	}{
		{
			name: "time routine",
			p: pattern.Pattern{
				Type: pattern.TypeTimeBasedRoutine,
				Data: pattern.Data{Actions: []string{"open-standup-notes"}, Frequency: 7, TimeWindow: "09:00-09:20"},
			},
			wantTitle:   "Daily Routine: open-standup-notes",
			inDesc:      []string{"09:00-09:20", "7 occurrences"},
			inRecommend: "scheduling",
		},
		{
			name: "mode preference",
			p: pattern.Pattern{
				Type: pattern.TypeModePreference,
				Data: pattern.Data{Modes: []string{"focus"}, UsageRate: 0.85, Context: "device:laptop", SampleSize: 40},
			},
			wantTitle:   "Mode Preference: focus",
			inDesc:      []string{"85%", "device:laptop"},
			inRecommend: "default mode",
		},
		{
			name: "error pattern",
			p: pattern.Pattern{
				Type: pattern.TypeErrorPattern,
				Data: pattern.Data{Actions: []string{"deploy"}, ErrorRate: 0.25, SampleSize: 20},
			},
			wantTitle:   "High Error Rate: deploy",
			inDesc:      []string{"25.0%", "20 attempts"},
			inRecommend: "debug",
		},
		{
			name: "efficiency gain",
			p: pattern.Pattern{
				Type: pattern.TypeEfficiencyGain,
				Data: pattern.Data{Actions: []string{"run-build"}, Improvement: 0.5, SampleSize: 10},
			},
			wantTitle:   "Efficiency Gain: run-build",
			inDesc:      []string{"50% faster"},
			inRecommend: "current approach",
		},
		{
			name: "risk threshold",
			p: pattern.Pattern{
				Type: pattern.TypeRiskThreshold,
				Data: pattern.Data{Modes: []string{"focus"}, ApprovalRate: 0.5, SampleSize: 6},
			},
			wantTitle:   "Risk Tolerance in focus",
			inDesc:      []string{"50%", "6 high-risk"},
			inRecommend: "risk threshold",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ins := g.Generate(&tc.p)
			require.NotNil(t, ins)
			assert.Equal(t, tc.wantTitle, ins.Title)
			for _, want := range tc.inDesc {
				assert.Contains(t, ins.Description, want)
			}
			assert.Contains(t, ins.Recommendation, tc.inRecommend)
		})
	}
}

func TestGenerateFallback(t *testing.T) {
	g := NewGenerator(zap.NewNop())

	p := &pattern.Pattern{ID: "p1", Type: "unmapped_family", Confidence: 0.6}
	ins := g.Generate(p)
	require.NotNil(t, ins)
	assert.Equal(t, "Pattern Detected", ins.Title)
	assert.Contains(t, ins.Description, "unmapped_family")
	assert.Contains(t, ins.Description, "60%")
}

func TestGenerateBatch(t *testing.T) {
	g := NewGenerator(zap.NewNop())

	patterns := []pattern.Pattern{
		{ID: "low", Type: pattern.TypeFrequentAction, Confidence: 0.4, Data: pattern.Data{Actions: []string{"a"}}},
		{ID: "high", Type: pattern.TypeErrorPattern, Confidence: 0.9, Data: pattern.Data{Actions: []string{"b"}}},
		{ID: "mid", Type: pattern.TypeModePreference, Confidence: 0.7, Data: pattern.Data{Modes: []string{"focus"}}},
	}

	insights := g.GenerateBatch(patterns)
	require.Len(t, insights, 3)
	assert.Equal(t, "high", insights[0].PatternID)
	assert.Equal(t, "mid", insights[1].PatternID)
	assert.Equal(t, "low", insights[2].PatternID)
}

func TestGenerateBatchIsolatesPanics(t *testing.T) {
	g := NewGenerator(zap.NewNop())
	g.templates[pattern.Type("exploding")] = func(p *pattern.Pattern) (string, string, string) {
		panic("template blew up")
	}

	patterns := []pattern.Pattern{
		{ID: "bad", Type: "exploding", Confidence: 0.9},
		{ID: "good", Type: pattern.TypeFrequentAction, Confidence: 0.5, Data: pattern.Data{Actions: []string{"a"}}},
	}

	insights := g.GenerateBatch(patterns)
	require.Len(t, insights, 1)
	assert.Equal(t, "good", insights[0].PatternID)
}

func TestPrioritize(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	insights := []Insight{
		{ID: "older-high", Confidence: 0.8, GeneratedAt: base},
		{ID: "newer-high", Confidence: 0.8, GeneratedAt: base.Add(time.Minute)},
		{ID: "low", Confidence: 0.2, GeneratedAt: base.Add(time.Hour)},
		{ID: "top", Confidence: 0.95, GeneratedAt: base},
	}

	got := Prioritize(insights)
	require.Len(t, got, 4)
	assert.Equal(t, "top", got[0].ID)
	assert.Equal(t, "newer-high", got[1].ID)
	assert.Equal(t, "older-high", got[2].ID)
	assert.Equal(t, "low", got[3].ID)
}

func TestPrioritizeEmpty(t *testing.T) {
	assert.Empty(t, Prioritize(nil))
	assert.Empty(t, Prioritize([]Insight{}))
}
