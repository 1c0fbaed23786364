package optimize

// Веса вторичных метрик в фитнесе; ITAE идёт с весом 1.
const (
	OvershootWeight   = 10.0
	SteadyStateWeight = 5.0
)

// Fitness сворачивает метрики испытания в один скаляр; меньше — лучше.
// Провалившиеся испытания в фитнес не попадают: им присваивается +Inf
// на уровне оценки кандидата.
func Fitness(itae, overshoot, steadyStateError float64) float64 {
	return itae + OvershootWeight*overshoot + SteadyStateWeight*steadyStateError
}
