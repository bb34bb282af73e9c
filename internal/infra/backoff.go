package infra

import "time"

const (
	reconnectBase = time.Second
	reconnectCap  = 60 * time.Second
)

// ReconnectDelay returns the delay before reconnect attempt n, doubling from
// one second up to a one minute ceiling. Negative attempts count as the first.
func ReconnectDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return reconnectBase
	}
	d := reconnectBase
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= reconnectCap {
			return reconnectCap
		}
	}
	return d
}
