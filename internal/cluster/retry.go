package cluster

import "time"

// RetryPolicy controls the exponential back-off a Client applies to
// transient transport errors (ClusterUnavailable, Timeout), per spec §7.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryPolicy is a conservative default: 3 retries, 100ms initial
// back-off doubling up to 2s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
	}
}
