// Package adaptation is the orchestration entry point of the learning
// pipeline.
//
// The Engine pulls a bounded event window and aggregate statistics from
// the event bus, runs pattern detection, derives cross-cutting usage
// statistics (mode/device/role distributions, failing features, peak
// hours, task durations, error rates), persists fresh patterns and their
// insights into the learning store, and turns the aggregates into short
// textual recommendations.
package adaptation
