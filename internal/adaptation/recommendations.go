package adaptation

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/orbd/internal/event"
)

// GetRecommendations derives short textual recommendations from the
// aggregates of ComputeInsights using the configured thresholds.
// Recommendations are grouped by category; ordering within a category
// follows the underlying aggregate's ordering.
func (e *Engine) GetRecommendations(ctx context.Context, f event.Filter) ([]string, error) {
	insights, err := e.ComputeInsights(ctx, f)
	if err != nil {
		return nil, err
	}
	return e.recommend(insights), nil
}

func (e *Engine) recommend(insights *Insights) []string {
	recommendations := make([]string, 0)
	if insights.TotalEvents == 0 {
		return recommendations
	}

	for _, mc := range insights.MostUsedModes {
		share := float64(mc.Count) / float64(insights.TotalEvents)
		if share <= e.cfg.ModeShareThreshold {
			continue
		}
		recommendations = append(recommendations, fmt.Sprintf(
			"You use %s mode for %.0f%% of your activity. Consider making it your default.",
			mc.Mode, share*100))
	}

	for _, ff := range insights.FailingFeatures {
		if ff.ErrorRate <= e.cfg.FeatureErrorThreshold {
			continue
		}
		recommendations = append(recommendations, fmt.Sprintf(
			"%s fails %.1f%% of the time (%d attempts). Review or debug it.",
			ff.Feature, ff.ErrorRate*100, ff.Attempts))
	}

	if insights.ErrorRate > e.cfg.OverallErrorThreshold {
		recommendations = append(recommendations, fmt.Sprintf(
			"Overall error rate is %.1f%%. Review recent failures across features.",
			insights.ErrorRate*100))
	}

	return recommendations
}
