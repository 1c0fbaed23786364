package optimize

import (
	"math"
	"math/rand"

	"github.com/balansir/pidtune/internal/config"
)

// psoVelocitySpan — предел модуля скорости: доля диапазона гена.
const psoVelocitySpan = 0.2

// particle — частица роя: позиция, скорость и личный рекорд.
type particle struct {
	pos   Gains
	vel   Gains
	best  Gains
	bestF float64
}

// PSO — рой частиц: v' = w·v + c1·r1·(pBest−x) + c2·r2·(gBest−x),
// r1/r2 — независимые розыгрыши на каждый ген; скорость зажата в ±20%
// диапазона гена, позиция — в границы пространства.
type PSO struct {
	cfg   config.PSOConfig
	space Space
	rng   *rand.Rand
}

// NewPSO создаёт PSO с параметрами из конфига.
func NewPSO(cfg config.PSOConfig, space Space, rng *rand.Rand) *PSO {
	return &PSO{cfg: cfg, space: space, rng: rng}
}

// Name возвращает имя алгоритма.
func (o *PSO) Name() string { return "pso" }

// Run ведёт рой cfg.Iterations итераций. Глобальный рекорд обновляется
// только при строгом улучшении.
func (o *PSO) Run(p Plant, sink Sink) (Candidate, error) {
	swarm := make([]particle, o.cfg.Particles)
	for i := range swarm {
		pos := o.space.Random(o.rng)
		swarm[i] = particle{
			pos:   pos,
			vel:   o.randomVelocity(),
			best:  pos,
			bestF: math.Inf(1),
		}
	}
	gbest := Candidate{Fitness: math.Inf(1)}

	for it := 0; it < o.cfg.Iterations; it++ {
		for i := range swarm {
			f, err := p.Measure(swarm[i].pos)
			if err != nil {
				return gbest, err
			}
			c := Candidate{Gains: swarm[i].pos, Fitness: f}
			sink.Evaluated(c)
			if better(f, swarm[i].bestF) {
				swarm[i].best = swarm[i].pos
				swarm[i].bestF = f
			}
			if better(f, gbest.Fitness) {
				gbest = c
			}
		}
		sink.Progress(gbest, it+1, o.cfg.Iterations)
		if it == o.cfg.Iterations-1 {
			break
		}
		for i := range swarm {
			o.move(&swarm[i], gbest.Gains)
		}
	}
	return gbest, nil
}

// randomVelocity — начальная скорость в пределах зажима.
func (o *PSO) randomVelocity() Gains {
	v := Gains{
		Kp: (o.rng.Float64()*2 - 1) * psoVelocitySpan * o.space.Kp.Span(),
		Ki: (o.rng.Float64()*2 - 1) * psoVelocitySpan * o.space.Ki.Span(),
		Kd: (o.rng.Float64()*2 - 1) * psoVelocitySpan * o.space.Kd.Span(),
	}
	if !o.space.TuneKi {
		v.Ki = 0
	}
	return v
}

// move обновляет скорость и позицию частицы.
func (o *PSO) move(pt *particle, gbest Gains) {
	pt.vel.Kp = o.velGene(pt.vel.Kp, pt.pos.Kp, pt.best.Kp, gbest.Kp, o.space.Kp)
	pt.vel.Kd = o.velGene(pt.vel.Kd, pt.pos.Kd, pt.best.Kd, gbest.Kd, o.space.Kd)
	if o.space.TuneKi {
		pt.vel.Ki = o.velGene(pt.vel.Ki, pt.pos.Ki, pt.best.Ki, gbest.Ki, o.space.Ki)
	}
	pt.pos.Kp += pt.vel.Kp
	pt.pos.Ki += pt.vel.Ki
	pt.pos.Kd += pt.vel.Kd
	pt.pos = o.space.Clamp(pt.pos)
}

// velGene — обновление скорости одного гена с независимыми r1/r2 и зажимом.
func (o *PSO) velGene(v, x, pbest, gbest float64, r Range) float64 {
	r1 := o.rng.Float64()
	r2 := o.rng.Float64()
	v = o.cfg.Inertia*v + o.cfg.Cognitive*r1*(pbest-x) + o.cfg.Social*r2*(gbest-x)
	lim := psoVelocitySpan * r.Span()
	if v > lim {
		v = lim
	} else if v < -lim {
		v = -lim
	}
	return v
}
