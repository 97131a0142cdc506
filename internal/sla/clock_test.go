package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/civicstack/form-engine/internal/domain"
)

func utc(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func TestComputeDueCalendarDays(t *testing.T) {
	cfg := domain.SLAConfig{Category: "general", SLADays: 7}
	createdAt := utc("2024-01-01T00:00:00Z")

	due := ComputeDue(createdAt, 7, cfg, nil)
	assert.Equal(t, utc("2024-01-08T00:00:00Z"), due)
}

func TestComputeDuePreservesTimeOfDay(t *testing.T) {
	createdAt := utc("2024-03-15T14:30:00Z")
	due := ComputeDue(createdAt, 3, domain.SLAConfig{}, nil)
	assert.Equal(t, utc("2024-03-18T14:30:00Z"), due)
}

func TestComputeDueBusinessDaysSkipWeekends(t *testing.T) {
	cfg := domain.SLAConfig{UseBusinessDays: true}
	// 2024-01-05 is a Friday; two business days land on Tuesday.
	createdAt := utc("2024-01-05T09:00:00Z")

	due := ComputeDue(createdAt, 2, cfg, nil)
	assert.Equal(t, utc("2024-01-09T09:00:00Z"), due)
}

func TestComputeDueBusinessDaysSkipHolidays(t *testing.T) {
	cfg := domain.SLAConfig{UseBusinessDays: true}
	createdAt := utc("2024-01-05T09:00:00Z")
	holidays := []time.Time{utc("2024-01-08T00:00:00Z")} // the Monday

	due := ComputeDue(createdAt, 2, cfg, holidays)
	assert.Equal(t, utc("2024-01-10T09:00:00Z"), due)
}

func TestComputeDueBufferIsCalendarDays(t *testing.T) {
	cfg := domain.SLAConfig{UseBusinessDays: true, BufferDays: 2}
	// One business day from Friday is Monday; buffer then lands on Wednesday
	// even though it crosses no weekend itself.
	createdAt := utc("2024-01-05T09:00:00Z")

	due := ComputeDue(createdAt, 1, cfg, nil)
	assert.Equal(t, utc("2024-01-10T09:00:00Z"), due)
}

func TestComputeDueZeroAndNegativeDays(t *testing.T) {
	createdAt := utc("2024-01-01T00:00:00Z")
	assert.Equal(t, createdAt, ComputeDue(createdAt, 0, domain.SLAConfig{}, nil))
	assert.Equal(t, createdAt, ComputeDue(createdAt, -3, domain.SLAConfig{}, nil))
}

func TestComputeDueIsMonotonic(t *testing.T) {
	createdAt := utc("2024-06-01T00:00:00Z")
	for _, cfg := range []domain.SLAConfig{
		{},
		{UseBusinessDays: true},
		{UseBusinessDays: true, BufferDays: 1},
	} {
		previous := ComputeDue(createdAt, 0, cfg, nil)
		for days := 1; days <= 30; days++ {
			due := ComputeDue(createdAt, days, cfg, nil)
			assert.True(t, due.After(previous) || due.Equal(previous),
				"due must not decrease: days=%d cfg=%+v", days, cfg)
			previous = due
		}
	}
}

func TestClassify(t *testing.T) {
	due := utc("2024-01-08T00:00:00Z")

	assert.Equal(t, OnTrack, Classify(utc("2024-01-01T00:00:00Z"), due, 1))
	assert.Equal(t, DueSoon, Classify(utc("2024-01-07T12:00:00Z"), due, 1))
	// Exactly at due is DUE_SOON, not OVERDUE.
	assert.Equal(t, DueSoon, Classify(due, due, 1))
	assert.Equal(t, Overdue, Classify(utc("2024-01-08T00:00:01Z"), due, 1))
}
