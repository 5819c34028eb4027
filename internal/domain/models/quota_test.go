package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/turtacn/quotagate/pkg/constants"
)

func TestWindow_Contains(t *testing.T) {
	start := time.Unix(86400, 0).UTC()
	w := Window{Start: start, End: start.Add(24 * time.Hour)}

	assert.True(t, w.Contains(start))
	assert.True(t, w.Contains(w.End.Add(-time.Second)))
	assert.False(t, w.Contains(w.End))
	assert.False(t, w.Contains(start.Add(-time.Nanosecond)))
}

func TestDeny(t *testing.T) {
	start := time.Unix(0, 0).UTC()
	w := Window{Start: start, End: start.Add(time.Hour)}

	v := Deny(5, w)
	assert.False(t, v.Allowed)
	assert.Equal(t, int64(0), v.Remaining)
	assert.Equal(t, w.End, v.ResetTime)
	assert.Equal(t, start, v.WindowStart)
	assert.Equal(t, int64(5), v.Limit)
}

func TestVerdict_RetryAfter(t *testing.T) {
	reset := time.Unix(1000, 0)
	v := &Verdict{ResetTime: reset}

	assert.Equal(t, 10*time.Second, v.RetryAfter(reset.Add(-10*time.Second)))
	assert.Equal(t, time.Duration(0), v.RetryAfter(reset.Add(time.Second)))
}

func TestNewCounterKey_NormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("X", 3600)
	ws := time.Unix(86400, 0).In(loc)
	k := NewCounterKey(NewIdentityKey(constants.KeyTypeNetwork, "A"), constants.ActionAIGrounded, ws)

	assert.Equal(t, time.UTC, k.WindowStart.Location())
	assert.True(t, k.WindowStart.Equal(ws))
	assert.Equal(t, constants.KeyTypeNetwork, k.KeyType)
	assert.Equal(t, "A", k.KeyValue)
}
