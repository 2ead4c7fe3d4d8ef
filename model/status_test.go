package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to DurableStatus }{
		{DurableStatusQueued, DurableStatusUploading},
		{DurableStatusUploading, DurableStatusCompleted},
		{DurableStatusUploading, DurableStatusFailed},
		{DurableStatusFailed, DurableStatusUploading},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be legal", tc.from, tc.to)
	}

	denied := []struct{ from, to DurableStatus }{
		{DurableStatusQueued, DurableStatusCompleted},
		{DurableStatusQueued, DurableStatusFailed},
		{DurableStatusFailed, DurableStatusCompleted},
		{DurableStatusFailed, DurableStatusQueued},
		{DurableStatusUploading, DurableStatusQueued},
	}
	for _, tc := range denied {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be rejected", tc.from, tc.to)
	}
}

func TestCompletedIsTerminal(t *testing.T) {
	for _, to := range []DurableStatus{DurableStatusQueued, DurableStatusUploading, DurableStatusFailed, DurableStatusCompleted} {
		assert.False(t, CanTransition(DurableStatusCompleted, to))
	}
}
