package cache

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunKey holds the JSON snapshot of a finished run.
func RunKey(runID uuid.UUID) string {
	return fmt.Sprintf("run:%s", runID)
}

// RunStatusKey holds the live status of a run that is still in flight.
func RunStatusKey(runID uuid.UUID) string {
	return fmt.Sprintf("run:%s:status", runID)
}

// WindowKey names the request counter of one API key for the window that
// starts at start.
func WindowKey(keyPrefix string, start time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%d", keyPrefix, start.Unix())
}
