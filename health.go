package kyo

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	maxFailures     = 5
	failedThreshold = 3
)

// health tracks consecutive poll failures. Once the threshold is reached the
// link is considered down and polling waits 2^failures seconds, capped at
// 2^maxFailures.
type health struct {
	ok           bool
	failures     int
	backoffUntil time.Time
	forcePublish bool
	delay        *backoff.ExponentialBackOff
}

func newHealth() *health {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second << failedThreshold
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = time.Second << maxFailures
	bo.MaxElapsedTime = 0
	bo.Reset()
	return &health{
		forcePublish: true,
		delay:        bo,
	}
}

// success records a good poll cycle and reports whether the link recovered.
func (h *health) success() bool {
	recovered := !h.ok
	h.ok = true
	h.failures = 0
	h.backoffUntil = time.Time{}
	h.delay.Reset()
	if recovered {
		h.forcePublish = true
	}
	return recovered
}

// failure records a failed poll cycle and returns the backoff applied, if any.
func (h *health) failure(now time.Time) time.Duration {
	if h.failures < maxFailures {
		h.failures++
	}
	if h.failures < failedThreshold {
		return 0
	}
	h.ok = false
	d := h.delay.NextBackOff()
	h.backoffUntil = now.Add(d)
	return d
}

func (h *health) inBackoff(now time.Time) bool {
	return !h.ok && now.Before(h.backoffUntil)
}
