package sysinfo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCollectReportsNonNegativeUptime(t *testing.T) {
	c := New()
	time.Sleep(time.Millisecond)
	snap := c.Collect()
	assert.GreaterOrEqual(t, snap.UptimeSecond, 0.0)
}

func TestCollectIsSafeToCallRepeatedly(t *testing.T) {
	c := New()
	first := c.Collect()
	second := c.Collect()
	assert.GreaterOrEqual(t, second.UptimeSecond, first.UptimeSecond)
}
