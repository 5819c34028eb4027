package service

import (
	"time"

	"github.com/turtacn/quotagate/internal/domain/models"
)

// WindowFor returns the fixed window of windowSeconds that contains now.
// The start is floor(unix(now) / windowSeconds) * windowSeconds, computed on whole
// seconds since the epoch with no calendar or time zone semantics. An instant that
// lands exactly on a boundary belongs to the window that starts there.
func WindowFor(now time.Time, windowSeconds int64) models.Window {
	if windowSeconds <= 0 {
		windowSeconds = 1
	}
	secs := now.Unix()
	start := secs - mod(secs, windowSeconds)
	return models.Window{
		Start: time.Unix(start, 0).UTC(),
		End:   time.Unix(start+windowSeconds, 0).UTC(),
	}
}

// mod is the floored modulus so pre-epoch instants still floor downwards.
func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

//Personal.AI order the ending
