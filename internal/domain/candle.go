package domain

import (
	"strings"
	"time"
)

// Candle is a normalized OHLCV row at a fixed granularity. Fetched on demand
// from the market-data source and never persisted beyond the computation
// that needed it.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Closes extracts the close series from a candle slice.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		out[i] = candles[i].Close
	}
	return out
}

// NormalizePair maps a client-facing PERP product name to its spot-equivalent
// cache key. "ETH-PERP" -> "ETH-USD"; anything else passes through unchanged.
func NormalizePair(pair string) string {
	if strings.HasSuffix(pair, "-PERP") {
		return strings.TrimSuffix(pair, "-PERP") + "-USD"
	}
	return pair
}

// PairSymbol returns the coin symbol of a pair, lower-cased ("ETH-USD" -> "eth").
// Used to build per-pair webhook endpoints.
func PairSymbol(pair string) string {
	sym, _, found := strings.Cut(pair, "-")
	if !found {
		return strings.ToLower(pair)
	}
	return strings.ToLower(sym)
}
