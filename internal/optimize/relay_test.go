package optimize

import (
	"fmt"
	"math"
	"testing"

	"github.com/balansir/pidtune/internal/config"
)

// sineSamples имитирует отсчёты релейного испытания: чистая синусоида
// амплитуды amp с периодом period, опрос с шагом dt.
func sineSamples(amp, period, dur, dt float64) []RelayPoint {
	var out []RelayPoint
	for i := 0; ; i++ {
		t := float64(i) * dt
		if t >= dur {
			return out
		}
		out = append(out, RelayPoint{T: t, Angle: amp * math.Sin(2*math.Pi*t/period)})
	}
}

func TestAnalyzeRelay(t *testing.T) {
	const (
		oscAmp    = 0.1
		period    = 0.5
		relayAmp  = 0.5
		minCycles = 3
	)
	samples := sineSamples(oscAmp, period, 5, 0.02)

	res, err := AnalyzeRelay(samples, relayAmp, minCycles)
	if err != nil {
		t.Fatalf("AnalyzeRelay: %v", err)
	}
	if math.Abs(res.Tu-period) > 1e-9 {
		t.Errorf("Tu = %v, want %v", res.Tu, period)
	}
	// амплитуда по дискретным отсчётам чуть ниже истинной
	wantKu := 4 * relayAmp / (math.Pi * oscAmp)
	if math.Abs(res.Ku-wantKu)/wantKu > 0.01 {
		t.Errorf("Ku = %v, want ≈%v", res.Ku, wantKu)
	}
	// классическое отображение Циглера–Никольса
	if math.Abs(res.Gains.Kp-0.6*res.Ku) > 1e-12 {
		t.Errorf("kp = %v, want %v", res.Gains.Kp, 0.6*res.Ku)
	}
	if math.Abs(res.Gains.Ki-1.2*res.Ku/res.Tu) > 1e-12 {
		t.Errorf("ki = %v, want %v", res.Gains.Ki, 1.2*res.Ku/res.Tu)
	}
	if math.Abs(res.Gains.Kd-0.075*res.Ku*res.Tu) > 1e-12 {
		t.Errorf("kd = %v, want %v", res.Gains.Kd, 0.075*res.Ku*res.Tu)
	}
}

func TestAnalyzeRelay_TooFewCycles(t *testing.T) {
	// одна неполная осцилляция — циклов не набирается
	samples := sineSamples(0.1, 0.5, 0.6, 0.02)
	if _, err := AnalyzeRelay(samples, 0.5, 3); err == nil {
		t.Error("ожидали ошибку на нехватку циклов")
	}
}

func TestAnalyzeRelay_FlatSignal(t *testing.T) {
	var samples []RelayPoint
	for i := 0; i < 100; i++ {
		samples = append(samples, RelayPoint{T: float64(i) * 0.02, Angle: 0})
	}
	if _, err := AnalyzeRelay(samples, 0.5, 3); err == nil {
		t.Error("ожидали ошибку на сигнал без экстремумов")
	}
}

func TestRelayID_Run(t *testing.T) {
	r := NewRelayID(config.RelayConfig{Amplitude: 0.5, MinCycles: 3})
	p := &mockPlant{
		relay: func(a float64) ([]RelayPoint, error) {
			if a != 0.5 {
				t.Errorf("амплитуда реле: %v", a)
			}
			return sineSamples(0.1, 0.5, 5, 0.02), nil
		},
		measure: func(Gains) (float64, error) { return 1.23, nil },
	}
	sink := &recordSink{}

	best, err := r.Run(p, sink)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if best.Fitness != 1.23 {
		t.Errorf("fitness оценочного манёвра: %v", best.Fitness)
	}
	if best.Kp <= 0 || best.Kd <= 0 {
		t.Errorf("выведенные гейны: %+v", best.Gains)
	}
	if len(sink.evals) != 1 || len(sink.progress) != 1 {
		t.Errorf("события: evals=%d progress=%d", len(sink.evals), len(sink.progress))
	}
}

func TestRelayID_RunShortTest(t *testing.T) {
	r := NewRelayID(config.RelayConfig{Amplitude: 0.5, MinCycles: 3})
	p := &mockPlant{
		relay: func(float64) ([]RelayPoint, error) {
			// испытание оборвалось таймаутом: отсчётов мало
			return sineSamples(0.1, 0.5, 0.6, 0.02), nil
		},
		measure: func(Gains) (float64, error) { return 0, nil },
	}
	if _, err := r.Run(p, &recordSink{}); err == nil {
		t.Error("ожидали ошибку анализа на неполное испытание")
	}
}

func TestRelayID_RunRelayError(t *testing.T) {
	r := NewRelayID(config.RelayConfig{Amplitude: 0.5, MinCycles: 3})
	p := &mockPlant{
		relay: func(float64) ([]RelayPoint, error) {
			return nil, fmt.Errorf("линия упала")
		},
	}
	if _, err := r.Run(p, &recordSink{}); err == nil {
		t.Error("ожидали ошибку линии")
	}
}
