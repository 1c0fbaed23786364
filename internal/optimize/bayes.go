package optimize

import (
	"math"
	"math/rand"

	"github.com/balansir/pidtune/internal/config"
)

// Bayesian — байесовская оптимизация: случайные затравочные испытания,
// суррогатная регрессия гейны→фитнес и выбор следующего кандидата
// максимизацией acquisition-функции по грубой сетке через прогноз суррогата.
// Суррогат переобучается после каждого наблюдения по всем непровальным
// выборкам; меньше двух валидных — модель остаётся несвежей на этот круг.
type Bayesian struct {
	cfg     config.BayesConfig
	space   Space
	rng     *rand.Rand
	acquire Acquisition

	// Surrogate подменяется в тестах; по умолчанию квадратичная модель.
	Surrogate Regressor
	// BaselineSeed — добавить эти гейны затравочной выборкой.
	BaselineSeed *Gains
}

// NewBayesian создаёт стратегию; ошибка — неизвестная acquisition.
func NewBayesian(cfg config.BayesConfig, space Space, rng *rand.Rand) (*Bayesian, error) {
	acq, err := AcquisitionByName(cfg.Acquisition, cfg.Xi, cfg.Kappa)
	if err != nil {
		return nil, err
	}
	return &Bayesian{
		cfg:       cfg,
		space:     space,
		rng:       rng,
		acquire:   acq,
		Surrogate: NewQuadratic(),
	}, nil
}

// Name возвращает имя алгоритма.
func (b *Bayesian) Name() string { return "bayes" }

// Run: затравка, затем cfg.Iterations шагов выбор-оценка-дообучение.
func (b *Bayesian) Run(p Plant, sink Sink) (Candidate, error) {
	var samples []Candidate
	best := Candidate{Fitness: math.Inf(1)}

	eval := func(g Gains) error {
		f, err := p.Measure(g)
		if err != nil {
			return err
		}
		c := Candidate{Gains: g, Fitness: f}
		samples = append(samples, c)
		sink.Evaluated(c)
		if better(f, best.Fitness) {
			best = c
		}
		return nil
	}

	if b.BaselineSeed != nil {
		if err := eval(b.space.Clamp(*b.BaselineSeed)); err != nil {
			return best, err
		}
	}
	for i := 0; i < b.cfg.InitialSamples; i++ {
		if err := eval(b.space.Random(b.rng)); err != nil {
			return best, err
		}
	}
	sink.Progress(best, 0, b.cfg.Iterations)

	fitted := false
	for it := 0; it < b.cfg.Iterations; it++ {
		xs, ys := b.validSamples(samples)
		if len(xs) >= 2 {
			if err := b.Surrogate.Fit(xs, ys); err != nil {
				return best, err
			}
			fitted = true
		}
		var next Gains
		if fitted && !math.IsInf(best.Fitness, 1) {
			next = b.nextByAcquisition(xs, best.Fitness)
		} else {
			// суррогату не на чем стоять — продолжаем случайный посев
			next = b.space.Random(b.rng)
		}
		if err := eval(next); err != nil {
			return best, err
		}
		sink.Progress(best, it+1, b.cfg.Iterations)
	}
	return best, nil
}

// validSamples — непровальные наблюдения в нормированных координатах.
func (b *Bayesian) validSamples(samples []Candidate) ([][3]float64, []float64) {
	var xs [][3]float64
	var ys []float64
	for _, s := range samples {
		if math.IsInf(s.Fitness, 1) {
			continue
		}
		xs = append(xs, b.normalize(s.Gains))
		ys = append(ys, s.Fitness)
	}
	return xs, ys
}

// nextByAcquisition перебирает сетку GridPoints³ (ki — одна точка, если
// закреплён) и возвращает точку с максимальной acquisition.
func (b *Bayesian) nextByAcquisition(observed [][3]float64, bestF float64) Gains {
	n := b.cfg.GridPoints
	kiPoints := n
	if !b.space.TuneKi {
		kiPoints = 1
	}
	bestScore := math.Inf(-1)
	var bestG Gains
	for i := 0; i < n; i++ {
		for j := 0; j < kiPoints; j++ {
			for k := 0; k < n; k++ {
				g := Gains{
					Kp: gridPoint(b.space.Kp, i, n),
					Ki: gridPoint(b.space.Ki, j, kiPoints),
					Kd: gridPoint(b.space.Kd, k, n),
				}
				if !b.space.TuneKi {
					g.Ki = b.space.FixedKi
				}
				x := b.normalize(g)
				score := b.acquire(b.Surrogate.Predict(x), bestF, nearestDistance(x, observed))
				if score > bestScore {
					bestScore = score
					bestG = g
				}
			}
		}
	}
	return bestG
}

// normalize переводит гейны в единичный куб пространства поиска
// (обусловленность суррогата и естественная шкала расстояний).
func (b *Bayesian) normalize(g Gains) [3]float64 {
	return [3]float64{
		normGene(g.Kp, b.space.Kp),
		normGene(g.Ki, b.space.Ki),
		normGene(g.Kd, b.space.Kd),
	}
}

func normGene(v float64, r Range) float64 {
	if r.Span() == 0 {
		return 0
	}
	return (v - r.Min) / r.Span()
}

func gridPoint(r Range, i, n int) float64 {
	if n <= 1 {
		return (r.Min + r.Max) / 2
	}
	return r.Min + r.Span()*float64(i)/float64(n-1)
}

// nearestDistance — расстояние до ближайшего наблюдения в единичном кубе;
// там, где модель ничего не видела, оно велико.
func nearestDistance(x [3]float64, observed [][3]float64) float64 {
	min := math.Inf(1)
	for _, o := range observed {
		d := 0.0
		for i := 0; i < 3; i++ {
			dd := x[i] - o[i]
			d += dd * dd
		}
		if d < min {
			min = d
		}
	}
	if math.IsInf(min, 1) {
		return 1
	}
	return math.Sqrt(min)
}
