// Package indicator holds the stateless technical helpers used across the
// trend filter, sizer and velocity monitor. Keep these fast and
// allocation-light; SMA and ATR are called on every candidate signal.
package indicator

import (
	"math"

	"github.com/markremover/futures-oracle/internal/domain"
)

// SMA returns the simple moving average of the last period closes.
// With fewer than period samples it degrades to the last available close;
// callers must treat that as a low-confidence result, not an error.
func SMA(closes []float64, period int) float64 {
	if len(closes) == 0 || period <= 0 {
		return 0
	}
	if len(closes) < period {
		return closes[len(closes)-1]
	}
	var sum float64
	for _, c := range closes[len(closes)-period:] {
		sum += c
	}
	return sum / float64(period)
}

// ATR returns the Wilder-style average true range over the most recent
// period intervals: max(high-low, |high-prevClose|, |low-prevClose|) per
// interval, arithmetic mean of the last period values.
//
// Returns 0 when fewer than period+1 candles are available. ATR=0 is a hard
// failure for sizing: never trade on it.
func ATR(candles []domain.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0
	}
	start := len(candles) - period
	var sum float64
	for i := start; i < len(candles); i++ {
		prevClose := candles[i-1].Close
		tr := candles[i].High - candles[i].Low
		tr = math.Max(tr, math.Abs(candles[i].High-prevClose))
		tr = math.Max(tr, math.Abs(candles[i].Low-prevClose))
		sum += tr
	}
	return sum / float64(period)
}

// VelocityPct is the signed percentage move from oldest to current.
func VelocityPct(oldest, current float64) float64 {
	if oldest == 0 {
		return 0
	}
	return (current - oldest) / oldest * 100
}
