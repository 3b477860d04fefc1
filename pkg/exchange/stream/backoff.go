package stream

import "time"

const (
	baseDelay = 500 * time.Millisecond
	maxDelay  = 30 * time.Second
)

func backoff(retry int) time.Duration {
	if retry <= 0 {
		return baseDelay
	}
	if retry > 16 {
		return maxDelay
	}
	delay := baseDelay * time.Duration(1<<retry)
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}
