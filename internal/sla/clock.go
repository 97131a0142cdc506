package sla

import (
	"time"

	"github.com/civicstack/form-engine/internal/domain"
)

// Classification buckets a submission's position against its due time.
type Classification string

const (
	OnTrack Classification = "ON_TRACK"
	DueSoon Classification = "DUE_SOON"
	Overdue Classification = "OVERDUE"
)

// ComputeDue derives the due timestamp for a submission created at createdAt
// under the given configuration. All arithmetic happens in UTC and days are
// full 24-hour increments from the moment of creation, not calendar-midnight
// boundaries. In business-day mode a day only counts when it does not land
// on a weekend or on one of the injected holidays; the buffer is always
// plain calendar days on top.
func ComputeDue(createdAt time.Time, slaDays int, cfg domain.SLAConfig, holidays []time.Time) time.Time {
	due := createdAt.UTC()
	if slaDays < 0 {
		slaDays = 0
	}

	if cfg.UseBusinessDays {
		holidaySet := make(map[string]struct{}, len(holidays))
		for _, holiday := range holidays {
			holidaySet[holiday.UTC().Format("2006-01-02")] = struct{}{}
		}
		counted := 0
		for counted < slaDays {
			due = due.Add(24 * time.Hour)
			if isBusinessDay(due, holidaySet) {
				counted++
			}
		}
	} else {
		due = due.Add(time.Duration(slaDays) * 24 * time.Hour)
	}

	if cfg.BufferDays > 0 {
		due = due.Add(time.Duration(cfg.BufferDays) * 24 * time.Hour)
	}
	return due
}

// Classify buckets now against due. OVERDUE strictly after due; DUE_SOON
// within thresholdDays of due; ON_TRACK otherwise.
func Classify(now, due time.Time, thresholdDays int) Classification {
	now = now.UTC()
	due = due.UTC()
	if now.After(due) {
		return Overdue
	}
	threshold := time.Duration(thresholdDays) * 24 * time.Hour
	if due.Sub(now) <= threshold {
		return DueSoon
	}
	return OnTrack
}

func isBusinessDay(t time.Time, holidays map[string]struct{}) bool {
	weekday := t.Weekday()
	if weekday == time.Saturday || weekday == time.Sunday {
		return false
	}
	_, holiday := holidays[t.Format("2006-01-02")]
	return !holiday
}
