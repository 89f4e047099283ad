package client

import (
	"errors"
	"math/rand"
	"net"
	"time"
)

// RetryConfig governs retries of transient failures, separate from the
// auth-refresh retry handled by the coordinator.
type RetryConfig struct {
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	RetryableStatuses []int
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		BaseDelay:         time.Second,
		MaxDelay:          30 * time.Second,
		RetryableStatuses: []int{408, 429, 500, 502, 503, 504},
	}
}

// Delay is base * 2^attempt plus up to a second of jitter, capped at
// MaxDelay. The jitter keeps many clients from retrying in lockstep.
func (rc RetryConfig) Delay(attempt int) time.Duration {
	delay := rc.BaseDelay<<uint(attempt) + time.Duration(rand.Int63n(int64(time.Second)))
	if delay > rc.MaxDelay {
		return rc.MaxDelay
	}
	return delay
}

func (rc RetryConfig) RetryableStatus(status int) bool {
	for _, s := range rc.RetryableStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// retryableError reports whether a request that got no response at all is
// worth retrying. Timeouts may be transient load; a hard connection failure
// usually is not.
func retryableError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
