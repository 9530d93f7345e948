package indicators

import (
	"errors"
	"fmt"
	"math"

	"github.com/fazecat/mogulscan/Internal/types"
	"github.com/fazecat/mogulscan/Internal/utils"
)

var ErrNotEnoughCandles = errors.New("not enough candles")

const (
	rsiPeriod       = 14
	smaPeriod       = 20
	emaFastPeriod   = 12
	emaSlowPeriod   = 26
	macdSignalSpan  = 9
	bollingerPeriod = 20
	bollingerStdDev = 2.0
	volumePeriod    = 20
)

// Engine turns a candle series (oldest first) into an IndicatorSnapshot.
type Engine struct {
	MinCandles int
}

func NewEngine() *Engine {
	return &Engine{MinCandles: bollingerPeriod}
}

func (e *Engine) Compute(candles []types.Candle) (*types.IndicatorSnapshot, error) {
	if len(candles) < e.MinCandles {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrNotEnoughCandles, len(candles), e.MinCandles)
	}

	closes := Closes(candles)
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		volumes[i] = c.Volume
	}

	snap := &types.IndicatorSnapshot{
		RSI:               RSI(closes, rsiPeriod),
		MACDHistogram:     MACDHistogram(closes),
		SMA20:             SMA(closes, smaPeriod),
		EMA12:             lastOf(EMASeries(closes, emaFastPeriod)),
		VolumeRatio:       VolumeRatio(volumes, volumePeriod),
		BollingerPosition: BollingerPosition(closes, bollingerPeriod, bollingerStdDev),
	}

	for _, v := range []float64{snap.RSI, snap.MACDHistogram, snap.SMA20, snap.EMA12, snap.VolumeRatio, snap.BollingerPosition} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("indicator produced non-finite value")
		}
	}
	return snap, nil
}

func Closes(candles []types.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// RSI averages the last period gains and losses (simple rolling mean).
// Returns 50 when there is not enough data or no movement at all.
func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 50.0
	}
	window := closes[len(closes)-period-1:]
	gain, loss := 0.0, 0.0
	for i := 1; i < len(window); i++ {
		change := window[i] - window[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

func SMA(values []float64, period int) float64 {
	if len(values) < period || period <= 0 {
		return 0
	}
	return utils.Average(values[len(values)-period:])
}

// EMASeries is the recursive EMA over the whole series seeded with the first value.
func EMASeries(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	k := 2.0 / float64(period+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// EMALast computes the EMA over only the last period values.
// ok is false when there are fewer than period values.
func EMALast(values []float64, period int) (float64, bool) {
	if len(values) < period || period <= 0 {
		return 0, false
	}
	return lastOf(EMASeries(values[len(values)-period:], period)), true
}

func MACDHistogram(closes []float64) float64 {
	if len(closes) < 2 {
		return 0
	}
	fast := EMASeries(closes, emaFastPeriod)
	slow := EMASeries(closes, emaSlowPeriod)
	macd := make([]float64, len(closes))
	for i := range closes {
		macd[i] = fast[i] - slow[i]
	}
	signal := EMASeries(macd, macdSignalSpan)
	return macd[len(macd)-1] - signal[len(signal)-1]
}

// BollingerPosition places the last close between the lower (0) and upper (1) band.
func BollingerPosition(closes []float64, period int, width float64) float64 {
	if len(closes) < period {
		return 0.5
	}
	window := closes[len(closes)-period:]
	mean := utils.Average(window)
	std := sampleStdDev(window, mean)
	upper := mean + width*std
	lower := mean - width*std
	bandWidth := upper - lower
	if bandWidth <= 0 {
		return 0.5
	}
	return utils.Clamp((closes[len(closes)-1]-lower)/bandWidth, 0, 1)
}

// VolumeRatio is the last volume over the SMA of the last period volumes.
func VolumeRatio(volumes []float64, period int) float64 {
	avg := SMA(volumes, period)
	if avg <= 0 {
		return 1.0
	}
	return volumes[len(volumes)-1] / avg
}

// ATR is the simple mean of the last period true ranges. Zero when data is short.
func ATR(candles []types.Candle, period int) float64 {
	if len(candles) < period+1 {
		return 0
	}
	window := candles[len(candles)-period-1:]
	ranges := make([]float64, 0, period)
	for i := 1; i < len(window); i++ {
		high, low, prevClose := window[i].High, window[i].Low, window[i-1].Close
		ranges = append(ranges, utils.Max(high-low, utils.Abs(high-prevClose), utils.Abs(low-prevClose)))
	}
	return utils.Average(ranges)
}

func sampleStdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

func lastOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}
