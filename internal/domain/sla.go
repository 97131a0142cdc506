package domain

import "time"

// SLAConfig holds per-category due-date rules. Changes apply prospectively
// only: submissions created earlier keep the due time stamped at creation.
type SLAConfig struct {
	Category                string
	SLADays                 int
	EscalationThresholdDays int
	UseBusinessDays         bool
	BufferDays              int
	UpdatedAt               time.Time
}

// DefaultSLAConfig is applied when a category has no stored configuration.
func DefaultSLAConfig(category string) SLAConfig {
	return SLAConfig{
		Category:                category,
		SLADays:                 7,
		EscalationThresholdDays: 1,
		UseBusinessDays:         false,
		BufferDays:              0,
	}
}
