package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextGrowsUntilCap(t *testing.T) {
	b := New(time.Second, 8*time.Second)

	assert.Equal(t, time.Second, b.Next())
	assert.Equal(t, 2*time.Second, b.Next())
	assert.Equal(t, 4*time.Second, b.Next())
	assert.Equal(t, 8*time.Second, b.Next())

	// Once capped, the delay stays at max and the counter stops advancing.
	assert.Equal(t, 8*time.Second, b.Next())
	assert.Equal(t, 8*time.Second, b.Next())
}

func TestResetRestartsSequence(t *testing.T) {
	b := New(time.Second, time.Minute)

	b.Next()
	b.Next()
	assert.Equal(t, 2, b.Attempt())

	b.Reset()
	assert.Equal(t, 0, b.Attempt())
	assert.Equal(t, time.Second, b.Next())
}

func TestNewNormalizesArguments(t *testing.T) {
	b := New(0, -time.Second)
	assert.Equal(t, time.Second, b.Next())
}
