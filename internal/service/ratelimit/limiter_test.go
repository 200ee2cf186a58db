package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowRefills(t *testing.T) {
	now := time.Unix(1700000000, 0)
	l := New()
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("h", 2, 1))
	assert.True(t, l.Allow("h", 2, 1))
	assert.False(t, l.Allow("h", 2, 1))
	assert.True(t, l.Allow("other", 2, 1), "keys are independent")

	now = now.Add(1500 * time.Millisecond)
	assert.True(t, l.Allow("h", 2, 1))
	assert.False(t, l.Allow("h", 2, 1))
}

func TestWaitHonoursContext(t *testing.T) {
	l := New()
	assert.NoError(t, l.Wait(context.Background(), "h", 1, 0.001))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Wait(ctx, "h", 1, 0.001), context.Canceled)
}
