package client

import "time"

// reconnectDelay returns min(attempt*base, maxDelay). Attempts below one count as one.
func reconnectDelay(attempt int, base, maxDelay time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = time.Second
	}
	next := time.Duration(attempt) * base
	if maxDelay > 0 && next > maxDelay {
		next = maxDelay
	}
	return next
}
