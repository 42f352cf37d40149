package insight

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/orbd/internal/pattern"
)

// template renders title, description, and recommendation for one pattern
// type.
type template func(p *pattern.Pattern) (title, description, recommendation string)

// Generator maps patterns to insights via per-type templates.
type Generator struct {
	templates map[pattern.Type]template
	logger    *zap.Logger
}

// NewGenerator creates a generator with the built-in template registry.
func NewGenerator(logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		templates: map[pattern.Type]template{
			pattern.TypeFrequentAction:   frequentActionTemplate,
			pattern.TypeTimeBasedRoutine: timeRoutineTemplate,
			pattern.TypeModePreference:   modePreferenceTemplate,
			pattern.TypeErrorPattern:     errorPatternTemplate,
			pattern.TypeEfficiencyGain:   efficiencyGainTemplate,
			pattern.TypeRiskThreshold:    riskThresholdTemplate,
		},
		logger: logger,
	}
}

// Generate produces the insight for a single pattern. Pattern types without
// a registered template get the generic fallback; Generate never fails.
func (g *Generator) Generate(p *pattern.Pattern) *Insight {
	tmpl, ok := g.templates[p.Type]
	if !ok {
		g.logger.Warn("no template registered for pattern type, using fallback",
			zap.String("type", string(p.Type)),
			zap.String("pattern_id", p.ID))
		tmpl = fallbackTemplate
	}

	title, description, recommendation := tmpl(p)
	return &Insight{
		ID:             uuid.New().String(),
		PatternID:      p.ID,
		GeneratedAt:    time.Now().UTC(),
		Confidence:     p.Confidence,
		Title:          title,
		Description:    description,
		Recommendation: recommendation,
	}
}

// GenerateBatch produces one insight per pattern and returns the survivors
// in prioritized order. A panic while rendering one pattern is isolated and
// logged; the rest of the batch still generates.
func (g *Generator) GenerateBatch(patterns []pattern.Pattern) []Insight {
	insights := make([]Insight, 0, len(patterns))
	for i := range patterns {
		ins := g.generateSafe(&patterns[i])
		if ins == nil {
			continue
		}
		insights = append(insights, *ins)
	}
	return Prioritize(insights)
}

func (g *Generator) generateSafe(p *pattern.Pattern) (ins *Insight) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("insight generation failed, skipping pattern",
				zap.String("pattern_id", p.ID),
				zap.String("type", string(p.Type)),
				zap.Any("panic", r))
			ins = nil
		}
	}()
	return g.Generate(p)
}

// Prioritize stable-sorts insights by confidence descending, breaking ties
// by GeneratedAt descending (most recent first). This ordering is a hard
// contract for anything presenting insights to a user.
func Prioritize(insights []Insight) []Insight {
	sort.SliceStable(insights, func(i, j int) bool {
		if insights[i].Confidence != insights[j].Confidence {
			return insights[i].Confidence > insights[j].Confidence
		}
		return insights[i].GeneratedAt.After(insights[j].GeneratedAt)
	})
	return insights
}

func firstOr(list []string, fallback string) string {
	if len(list) > 0 {
		return list[0]
	}
	return fallback
}

func frequentActionTemplate(p *pattern.Pattern) (string, string, string) {
	action := firstOr(p.Data.Actions, "an action")
	return fmt.Sprintf("Frequent %s Detected", action),
		fmt.Sprintf("You performed %s %d times in this window, averaging %.1f times per day.",
			action, p.Data.Frequency, p.Data.AvgPerDay),
		fmt.Sprintf("Consider creating a shortcut or automation for %s to save time.", action)
}

func timeRoutineTemplate(p *pattern.Pattern) (string, string, string) {
	action := firstOr(p.Data.Actions, "an action")
	return fmt.Sprintf("Daily Routine: %s", action),
		fmt.Sprintf("You usually perform %s between %s (%d occurrences in this window).",
			action, p.Data.TimeWindow, p.Data.Frequency),
		fmt.Sprintf("Consider scheduling %s automatically within the %s window.", action, p.Data.TimeWindow)
}

func modePreferenceTemplate(p *pattern.Pattern) (string, string, string) {
	mode := firstOr(p.Data.Modes, "a mode")
	return fmt.Sprintf("Mode Preference: %s", mode),
		fmt.Sprintf("You used %s mode for %.0f%% of activity on %s.",
			mode, p.Data.UsageRate*100, p.Data.Context),
		fmt.Sprintf("Consider making %s the default mode for %s.", mode, p.Data.Context)
}

func errorPatternTemplate(p *pattern.Pattern) (string, string, string) {
	action := firstOr(p.Data.Actions, "an action")
	return fmt.Sprintf("High Error Rate: %s", action),
		fmt.Sprintf("%s failed %.1f%% of the time across %d attempts.",
			action, p.Data.ErrorRate*100, p.Data.SampleSize),
		fmt.Sprintf("Review recent failures of %s and debug the underlying cause.", action)
}

func efficiencyGainTemplate(p *pattern.Pattern) (string, string, string) {
	action := firstOr(p.Data.Actions, "an action")
	return fmt.Sprintf("Efficiency Gain: %s", action),
		fmt.Sprintf("Recent runs of %s are %.0f%% faster than your earliest runs in this window.",
			action, p.Data.Improvement*100),
		fmt.Sprintf("Whatever changed about %s is working; keep the current approach.", action)
}

func riskThresholdTemplate(p *pattern.Pattern) (string, string, string) {
	mode := firstOr(p.Data.Modes, "a mode")
	return fmt.Sprintf("Risk Tolerance in %s", mode),
		fmt.Sprintf("You approved %.0f%% of %d high-risk actions presented in %s mode.",
			p.Data.ApprovalRate*100, p.Data.SampleSize, mode),
		fmt.Sprintf("Consider adjusting the risk threshold for %s mode to match your approval behavior.", mode)
}

func fallbackTemplate(p *pattern.Pattern) (string, string, string) {
	return "Pattern Detected",
		fmt.Sprintf("A %s pattern was detected with %.0f%% confidence.", p.Type, p.Confidence*100),
		"Review the pattern details to decide whether to act on it."
}
