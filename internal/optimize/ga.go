package optimize

import (
	"math"
	"math/rand"

	"github.com/balansir/pidtune/internal/config"
)

// Параметры GA, не выносимые в конфиг.
const (
	gaTournamentSize = 3
	gaMutationSpan   = 0.1 // амплитуда мутации — доля диапазона гена
)

// GA — генетический алгоритм: турнирная селекция, линейное смешивание,
// помутационная перестройка генов с зажимом в границы, опциональный элитизм.
// Кандидаты оцениваются последовательно: в полёте всегда одно испытание.
type GA struct {
	cfg   config.GAConfig
	space Space
	rng   *rand.Rand
}

// NewGA создаёт GA с параметрами из конфига.
func NewGA(cfg config.GAConfig, space Space, rng *rand.Rand) *GA {
	return &GA{cfg: cfg, space: space, rng: rng}
}

// Name возвращает имя алгоритма.
func (g *GA) Name() string { return "ga" }

// Run ведёт эволюцию cfg.Generations поколений по cfg.Population особей.
// Лучший за всю историю кандидат обновляется только при строгом улучшении.
func (g *GA) Run(p Plant, sink Sink) (Candidate, error) {
	pop := make([]Candidate, g.cfg.Population)
	for i := range pop {
		pop[i] = Unevaluated(g.space.Random(g.rng))
	}
	best := Candidate{Fitness: math.Inf(1)}

	for gen := 0; gen < g.cfg.Generations; gen++ {
		for i := range pop {
			f, err := p.Measure(pop[i].Gains)
			if err != nil {
				return best, err
			}
			pop[i].Fitness = f
			sink.Evaluated(pop[i])
			if better(f, best.Fitness) {
				best = pop[i]
			}
		}
		sink.Progress(best, gen+1, g.cfg.Generations)
		if gen == g.cfg.Generations-1 {
			break
		}
		pop = g.evolve(pop)
	}
	return best, nil
}

// evolve собирает следующее поколение: элита (если включена) + потомки
// турнирных родителей после кроссовера и мутации.
func (g *GA) evolve(pop []Candidate) []Candidate {
	next := make([]Candidate, 0, len(pop))
	if g.cfg.Elitism {
		next = append(next, bestOf(pop))
	}
	for len(next) < len(pop) {
		p1 := g.tournament(pop)
		p2 := g.tournament(pop)
		child := p1.Gains
		if g.rng.Float64() < g.cfg.CrossoverRate {
			child = g.crossover(p1.Gains, p2.Gains)
		}
		child = g.mutate(child)
		next = append(next, Unevaluated(g.space.Clamp(child)))
	}
	return next
}

// tournament возвращает лучшего из gaTournamentSize случайных особей.
func (g *GA) tournament(pop []Candidate) Candidate {
	win := pop[g.rng.Intn(len(pop))]
	for i := 1; i < gaTournamentSize; i++ {
		c := pop[g.rng.Intn(len(pop))]
		if better(c.Fitness, win.Fitness) {
			win = c
		}
	}
	return win
}

// crossover — линейное смешивание с одним случайным коэффициентом.
func (g *GA) crossover(a, b Gains) Gains {
	t := g.rng.Float64()
	return Gains{
		Kp: t*a.Kp + (1-t)*b.Kp,
		Ki: t*a.Ki + (1-t)*b.Ki,
		Kd: t*a.Kd + (1-t)*b.Kd,
	}
}

// mutate независимо возмущает каждый ген с вероятностью MutationRate
// на величину до gaMutationSpan диапазона этого гена.
func (g *GA) mutate(c Gains) Gains {
	if g.rng.Float64() < g.cfg.MutationRate {
		c.Kp += (g.rng.Float64()*2 - 1) * gaMutationSpan * g.space.Kp.Span()
	}
	if g.space.TuneKi && g.rng.Float64() < g.cfg.MutationRate {
		c.Ki += (g.rng.Float64()*2 - 1) * gaMutationSpan * g.space.Ki.Span()
	}
	if g.rng.Float64() < g.cfg.MutationRate {
		c.Kd += (g.rng.Float64()*2 - 1) * gaMutationSpan * g.space.Kd.Span()
	}
	return c
}

// bestOf возвращает особь с минимальным фитнесом (первую при равенстве).
func bestOf(pop []Candidate) Candidate {
	win := pop[0]
	for _, c := range pop[1:] {
		if better(c.Fitness, win.Fitness) {
			win = c
		}
	}
	return win
}
