package httpapi

import (
	"math/rand/v2"
	"time"

	"network-monitor/internal/infrastructure/config"
)

// sleepResponseDelay holds a proxied response for the configured delay, a
// uniform pick from the range when one is set.
func sleepResponseDelay(d config.DelayRange) {
	if d.Max <= 0 {
		return
	}
	ms := d.Min
	if d.Max > d.Min {
		ms += rand.IntN(d.Max - d.Min + 1)
	}
	time.Sleep(time.Duration(ms) * time.Millisecond)
}
