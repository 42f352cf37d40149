package adaptation

import (
	"time"

	"github.com/fyrsmithlabs/orbd/internal/event"
	"github.com/fyrsmithlabs/orbd/internal/pattern"
)

// DeviceCount pairs a device with its event count.
type DeviceCount struct {
	Device string `json:"device"`
	Count  int    `json:"count"`
}

// FeatureErrorRate reports the failure rate of one feature (action).
type FeatureErrorRate struct {
	Feature   string  `json:"feature"`
	ErrorRate float64 `json:"errorRate"`
	Attempts  int     `json:"attempts"`
}

// HourCount pairs an hour of day (0-23, UTC) with its event count.
type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// Insights is the engine's aggregate view over an event window.
type Insights struct {
	GeneratedAt time.Time `json:"generatedAt"`
	TotalEvents int       `json:"totalEvents"`

	// MostUsedModes comes straight from the bus statistics.
	MostUsedModes []event.ModeCount `json:"mostUsedModes"`

	// DeviceUsage is sorted by count descending, device ascending on ties.
	DeviceUsage []DeviceCount `json:"deviceUsage"`

	// RoleActivity counts events per emitting role.
	RoleActivity map[event.Role]int `json:"roleActivity"`

	// FailingFeatures lists only features with a non-zero error rate,
	// sorted by error rate descending.
	FailingFeatures []FeatureErrorRate `json:"failingFeatures"`

	// PeakHours are the busiest hours of day, largest first.
	PeakHours []HourCount `json:"peakHours"`

	// AvgTaskDurationMs averages matched start-to-outcome pairs; unmatched
	// starts are ignored.
	AvgTaskDurationMs float64 `json:"avgTaskDurationMs"`

	ErrorRate   float64 `json:"errorRate"`
	SuccessRate float64 `json:"successRate"`

	Patterns []pattern.Pattern `json:"patterns"`
}
