package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffGrowsWithRetries(t *testing.T) {
	base := float64(100 * time.Millisecond)
	maxNS := float64(2 * time.Second)

	d0 := Backoff(base, maxNS, 0, 2, 0)
	d3 := Backoff(base, maxNS, 0, 2, 3)
	assert.Greater(t, int64(d3), int64(d0))
}

func TestBackoffRespectsMax(t *testing.T) {
	d := Backoff(float64(time.Second), float64(time.Second), 0, 2, 10)
	assert.LessOrEqual(t, int64(d), int64(time.Second))
}

func TestBackoffNonNegative(t *testing.T) {
	d := Backoff(float64(100*time.Millisecond), float64(time.Second), 0.5, 2, 5)
	assert.GreaterOrEqual(t, int64(d), int64(0))
}
