package optimize

import (
	"fmt"
	"math"

	"github.com/balansir/pidtune/internal/config"
)

// relayPeakDebounce — минимальный интервал между записанными пиками
// (и, симметрично, впадинами), отсекает дребезг датчика.
const relayPeakDebounce = 0.1

// RelayID — релейная идентификация по Циглеру–Никольсу: возбуждение
// объекта реле фиксированной амплитуды, выделение пиков/впадин колебания,
// расчёт Ku/Tu и классическое отображение в гейны. Полученные гейны
// оцениваются одним манёвром метрик, чтобы стратегия, как и остальные,
// выдала пару (кандидат, фитнес).
type RelayID struct {
	cfg config.RelayConfig
}

// NewRelayID создаёт стратегию релейной идентификации.
func NewRelayID(cfg config.RelayConfig) *RelayID {
	return &RelayID{cfg: cfg}
}

// Name возвращает имя алгоритма.
func (r *RelayID) Name() string { return "relay" }

// Run выполняет релейное испытание, выводит гейны и оценивает их.
func (r *RelayID) Run(p Plant, sink Sink) (Candidate, error) {
	samples, err := p.Relay(r.cfg.Amplitude)
	if err != nil {
		return Candidate{Fitness: math.Inf(1)}, err
	}
	res, err := AnalyzeRelay(samples, r.cfg.Amplitude, r.cfg.MinCycles)
	if err != nil {
		return Candidate{Fitness: math.Inf(1)}, err
	}
	f, err := p.Measure(res.Gains)
	if err != nil {
		return Candidate{Gains: res.Gains, Fitness: math.Inf(1)}, err
	}
	c := Candidate{Gains: res.Gains, Fitness: f}
	sink.Evaluated(c)
	sink.Progress(c, 1, 1)
	return c, nil
}

// RelayResult — выведенные характеристики колебания и гейны.
type RelayResult struct {
	Ku        float64 // предельный коэффициент усиления
	Tu        float64 // предельный период, с
	Amplitude float64 // средняя амплитуда колебания, рад
	Gains     Gains
}

// AnalyzeRelay выделяет из отсчётов релейного испытания пики и впадины,
// считает Ku = 4A/(π·a) и Tu (средний период между пиками) и отображает их
// в гейны по классическому Циглеру–Никольсу:
// kp = 0.6·Ku, ki = 1.2·Ku/Tu, kd = 0.075·Ku·Tu.
// Требуется не меньше minCycles пиков И впадин; иначе — ошибка
// (в том числе когда испытание прервано таймаутом до набора циклов).
func AnalyzeRelay(samples []RelayPoint, relayAmplitude float64, minCycles int) (RelayResult, error) {
	if minCycles < 2 {
		minCycles = 2
	}
	peaks, valleys := findExtrema(samples)
	if len(peaks) < minCycles || len(valleys) < minCycles {
		return RelayResult{}, fmt.Errorf("relay: мало циклов: пиков %d, впадин %d, нужно %d",
			len(peaks), len(valleys), minCycles)
	}
	// последние minCycles экстремумов: колебание к концу устоявшееся
	peaks = peaks[len(peaks)-minCycles:]
	valleys = valleys[len(valleys)-minCycles:]

	var meanPeak, meanValley float64
	for _, p := range peaks {
		meanPeak += p.Angle
	}
	for _, v := range valleys {
		meanValley += v.Angle
	}
	meanPeak /= float64(minCycles)
	meanValley /= float64(minCycles)
	amp := (meanPeak - meanValley) / 2
	if amp <= 0 {
		return RelayResult{}, fmt.Errorf("relay: вырожденная амплитуда колебания %g", amp)
	}

	var tu float64
	for i := 1; i < len(peaks); i++ {
		tu += peaks[i].T - peaks[i-1].T
	}
	tu /= float64(len(peaks) - 1)
	if tu <= 0 {
		return RelayResult{}, fmt.Errorf("relay: вырожденный период %g", tu)
	}

	ku := 4 * relayAmplitude / (math.Pi * amp)
	return RelayResult{
		Ku:        ku,
		Tu:        tu,
		Amplitude: amp,
		Gains: Gains{
			Kp: 0.6 * ku,
			Ki: 1.2 * ku / tu,
			Kd: 0.075 * ku * tu,
		},
	}, nil
}

// findExtrema: отсчёт — пик, если он больше обоих соседей и отстоит от
// предыдущего записанного пика больше чем на relayPeakDebounce; впадины —
// симметрично.
func findExtrema(samples []RelayPoint) (peaks, valleys []RelayPoint) {
	lastPeakT := math.Inf(-1)
	lastValleyT := math.Inf(-1)
	for i := 1; i+1 < len(samples); i++ {
		s := samples[i]
		if s.Angle > samples[i-1].Angle && s.Angle > samples[i+1].Angle {
			if s.T-lastPeakT > relayPeakDebounce {
				peaks = append(peaks, s)
				lastPeakT = s.T
			}
		}
		if s.Angle < samples[i-1].Angle && s.Angle < samples[i+1].Angle {
			if s.T-lastValleyT > relayPeakDebounce {
				valleys = append(valleys, s)
				lastValleyT = s.T
			}
		}
	}
	return peaks, valleys
}
