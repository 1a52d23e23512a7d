// Package util holds small helpers shared across fbdbg packages.
package util

import (
	"math"
	"math/rand"
	"time"
)

// Backoff computes an exponential delay with jitter, the same parameter
// shape as open-policy-agent-opa/util.Backoff: base and maxNS bound the
// range in nanoseconds, factor grows the delay per retry, jitter scales a
// random perturbation applied on top.
func Backoff(base, maxNS, jitter, factor float64, retries int) time.Duration {
	if retries < 0 {
		retries = 0
	}
	delay := base * math.Pow(factor, float64(retries))
	if delay > maxNS {
		delay = maxNS
	}
	if jitter > 0 {
		delay += (rand.Float64()*2 - 1) * jitter * delay
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
