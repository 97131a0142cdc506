package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionFullTable(t *testing.T) {
	allowed := map[[2]SubmissionStatus]bool{
		{StatusPending, StatusInProgress}:    true,
		{StatusPending, StatusResolved}:      true,
		{StatusPending, StatusRejected}:      true,
		{StatusPending, StatusEscalated}:     true,
		{StatusInProgress, StatusResolved}:   true,
		{StatusInProgress, StatusRejected}:   true,
		{StatusInProgress, StatusEscalated}:  true,
		{StatusEscalated, StatusInProgress}:  true,
		{StatusEscalated, StatusResolved}:    true,
		{StatusEscalated, StatusRejected}:    true,
	}

	// Every pair over the closed status set, including self-transitions,
	// must match the table above; everything not listed is forbidden.
	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			expected := allowed[[2]SubmissionStatus{from, to}]
			assert.Equal(t, expected, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCanTransitionUnknownStatus(t *testing.T) {
	assert.False(t, CanTransition(SubmissionStatus("ARCHIVED"), StatusResolved))
	assert.False(t, CanTransition(StatusPending, SubmissionStatus("ARCHIVED")))
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusResolved.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusInProgress.Terminal())
	assert.False(t, StatusEscalated.Terminal())
}
