package optimize

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/balansir/pidtune/internal/config"
)

// ErrStopped — сессия остановлена; стратегия выходит в ближайшей точке
// приостановки, вернув лучшего найденного кандидата.
var ErrStopped = errors.New("optimize: остановлено")

// Candidate — кандидат с фитнесом; +Inf означает «не оценён или провал».
type Candidate struct {
	Gains
	Fitness float64
}

// Unevaluated возвращает кандидата без оценки.
func Unevaluated(g Gains) Candidate {
	return Candidate{Gains: g, Fitness: math.Inf(1)}
}

// RelayPoint — отсчёт релейного испытания, как его видит стратегия.
type RelayPoint struct {
	T     float64
	Angle float64
}

// Plant — контракт оценки на реальном объекте. Measure выполняет манёвр
// метрик и возвращает фитнес (+Inf при локальном отказе испытания);
// Relay выполняет релейное испытание. Приостановка/повтор при аварийном
// прерывании скрыты за этим контрактом: стратегия их не наблюдает.
type Plant interface {
	Measure(g Gains) (float64, error)
	Relay(amplitude float64) ([]RelayPoint, error)
}

// Sink получает события хода поиска: по одному Evaluated на оценку и по
// одному Progress на поколение/итерацию.
type Sink interface {
	Evaluated(c Candidate)
	Progress(best Candidate, iter, total int)
}

// Strategy — один алгоритм поиска. Run ведёт поиск до сходимости, исчерпания
// бюджета или ErrStopped; лучший кандидат возвращается и в случае остановки.
type Strategy interface {
	Name() string
	Run(p Plant, sink Sink) (Candidate, error)
}

// New собирает стратегию по конфигу. baseline — гейны, действующие до
// сессии: байесовская стратегия может взять их затравочной выборкой.
func New(cfg config.OptimizerConfig, space Space, baseline Gains, rng *rand.Rand) (Strategy, error) {
	if err := space.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Algorithm {
	case "ga":
		return NewGA(cfg.GA, space, rng), nil
	case "pso":
		return NewPSO(cfg.PSO, space, rng), nil
	case "relay":
		return NewRelayID(cfg.Relay), nil
	case "bayes":
		b, err := NewBayesian(cfg.Bayes, space, rng)
		if err != nil {
			return nil, err
		}
		if cfg.Bayes.SeedBaseline {
			seed := baseline
			b.BaselineSeed = &seed
		}
		return b, nil
	default:
		return nil, fmt.Errorf("optimize: неизвестный алгоритм %q", cfg.Algorithm)
	}
}

// better — строго лучше (при равенстве остаётся первый найденный).
func better(f, than float64) bool { return f < than }
