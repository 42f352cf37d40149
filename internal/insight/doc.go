// Package insight turns detected patterns into human-readable insights.
//
// Each pattern type maps to a fixed template producing a title,
// description, and recommendation; a pattern type without a registered
// template falls back to a generic confidence-only description, so
// generation never fails to produce some insight. Batches are returned in
// prioritized order: confidence descending, most recent first on ties.
package insight
