package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusIndexed, false},
		{StatusPending, StatusFailed, false},
		{StatusProcessing, StatusIndexed, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusPending, false},
		{StatusIndexed, StatusProcessing, true},
		{StatusIndexed, StatusPending, true},
		{StatusIndexed, StatusFailed, false},
		{StatusFailed, StatusProcessing, true},
		{StatusFailed, StatusIndexed, false},
		// Any live status may be archived; archived is terminal.
		{StatusPending, StatusArchived, true},
		{StatusIndexed, StatusArchived, true},
		{StatusArchived, StatusPending, false},
		{StatusArchived, StatusArchived, false},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}
