// Package pattern mines windows of behavioral events for recurring usage
// patterns.
//
// Detect runs six independent families over the same event window:
//
//   - frequent_action: actions repeated often relative to the window
//   - time_based_routine: same-action occurrences clustered in a narrow
//     clock-time window across days
//   - mode_preference: a mode dominating usage within a device context
//   - error_pattern: actions with elevated failure rates
//   - efficiency_gain: repeated actions getting measurably faster
//   - risk_threshold: approval rates for high-risk decisions per mode
//
// Each family is a pure function of the window plus the configured
// thresholds, so identical input events always yield identical pattern
// type/confidence/data. A panic in one family is isolated and logged; the
// remaining families still run.
package pattern
