package indicators

import (
	"errors"
	"math"
	"testing"

	"github.com/fazecat/mogulscan/Internal/types"
)

func candlesFromCloses(closes []float64) []types.Candle {
	out := make([]types.Candle, len(closes))
	for i, c := range closes {
		out[i] = types.Candle{Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 100}
	}
	return out
}

func series(n int, f func(i int) float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = f(i)
	}
	return out
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRSI(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		want   float64
	}{
		{name: "not enough data", closes: []float64{1, 2, 3}, want: 50},
		{name: "flat", closes: series(20, func(int) float64 { return 10 }), want: 50},
		{name: "only gains", closes: series(20, func(i int) float64 { return float64(i + 1) }), want: 100},
		{name: "only losses", closes: series(20, func(i int) float64 { return float64(100 - i) }), want: 0},
		{name: "balanced", closes: series(15, func(i int) float64 { return 10 + float64(i%2) }), want: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RSI(tt.closes, 14); !almostEqual(got, tt.want) {
				t.Errorf("RSI() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSMAAndEMA(t *testing.T) {
	closes := series(20, func(i int) float64 { return float64(i + 1) })
	if got := SMA(closes, 20); !almostEqual(got, 10.5) {
		t.Errorf("SMA() = %v, want 10.5", got)
	}
	if got := SMA(closes, 30); got != 0 {
		t.Errorf("SMA() with short data = %v, want 0", got)
	}

	ema := EMASeries([]float64{2, 4, 8}, 3)
	want := []float64{2, 3, 5.5}
	for i := range want {
		if !almostEqual(ema[i], want[i]) {
			t.Errorf("EMASeries()[%d] = %v, want %v", i, ema[i], want[i])
		}
	}

	if _, ok := EMALast(closes, 200); ok {
		t.Errorf("EMALast() with 20 values and period 200 should not be ok")
	}
	if v, ok := EMALast([]float64{0, 2, 4, 8}, 3); !ok || !almostEqual(v, 5.5) {
		t.Errorf("EMALast() = %v, %v, want 5.5, true", v, ok)
	}
}

func TestBollingerPosition(t *testing.T) {
	flat := series(20, func(int) float64 { return 10 })
	if got := BollingerPosition(flat, 20, 2); got != 0.5 {
		t.Errorf("flat BollingerPosition() = %v, want 0.5", got)
	}

	spike := series(20, func(i int) float64 {
		if i == 19 {
			return 100
		}
		return 10
	})
	if got := BollingerPosition(spike, 20, 2); got != 1 {
		t.Errorf("spike BollingerPosition() = %v, want clamped 1", got)
	}

	dump := series(20, func(i int) float64 {
		if i == 19 {
			return 1
		}
		return 100
	})
	if got := BollingerPosition(dump, 20, 2); got != 0 {
		t.Errorf("dump BollingerPosition() = %v, want clamped 0", got)
	}
}

func TestVolumeRatio(t *testing.T) {
	vols := series(20, func(i int) float64 {
		if i == 19 {
			return 2
		}
		return 1
	})
	want := 2 / 1.05
	if got := VolumeRatio(vols, 20); !almostEqual(got, want) {
		t.Errorf("VolumeRatio() = %v, want %v", got, want)
	}
	if got := VolumeRatio(series(20, func(int) float64 { return 0 }), 20); got != 1 {
		t.Errorf("VolumeRatio() with zero volume = %v, want 1", got)
	}
}

func TestMACDHistogramSign(t *testing.T) {
	rising := series(24, func(i int) float64 { return 100 + float64(i) })
	falling := series(24, func(i int) float64 { return 100 - float64(i) })

	if got := MACDHistogram(rising); got <= 0 {
		t.Errorf("MACDHistogram(rising) = %v, want > 0", got)
	}
	if got := MACDHistogram(falling); got >= 0 {
		t.Errorf("MACDHistogram(falling) = %v, want < 0", got)
	}
}

func TestATR(t *testing.T) {
	candles := candlesFromCloses(series(15, func(int) float64 { return 10 }))
	if got := ATR(candles, 14); !almostEqual(got, 2) {
		t.Errorf("ATR() = %v, want 2", got)
	}
	if got := ATR(candles[:5], 14); got != 0 {
		t.Errorf("ATR() with short data = %v, want 0", got)
	}
}

func TestEngine_Compute(t *testing.T) {
	e := NewEngine()

	_, err := e.Compute(candlesFromCloses(series(19, func(int) float64 { return 1 })))
	if !errors.Is(err, ErrNotEnoughCandles) {
		t.Errorf("Compute() with 19 candles error = %v, want ErrNotEnoughCandles", err)
	}

	snap, err := e.Compute(candlesFromCloses(series(24, func(i int) float64 { return 50 + float64(i) })))
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if snap.RSI != 100 {
		t.Errorf("RSI = %v, want 100", snap.RSI)
	}
	if snap.BollingerPosition < 0 || snap.BollingerPosition > 1 {
		t.Errorf("BollingerPosition = %v, want within [0,1]", snap.BollingerPosition)
	}
	if snap.VolumeRatio != 1 {
		t.Errorf("VolumeRatio = %v, want 1", snap.VolumeRatio)
	}
	if !almostEqual(snap.SMA20, 63.5) {
		t.Errorf("SMA20 = %v, want 63.5", snap.SMA20)
	}
}
