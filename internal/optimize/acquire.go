package optimize

import (
	"fmt"
	"math"
)

// Acquisition — функция перспективности точки для байесовского шага:
// mu — прогноз суррогата, best — лучший наблюдённый фитнес, spread — мера
// неопределённости (нормированное расстояние до ближайшего наблюдения).
// Больше — перспективнее; задача — минимизация фитнеса.
type Acquisition func(mu, best, spread float64) float64

// AcquisitionByName возвращает функцию по имени из конфига: ei, ucb, poi.
func AcquisitionByName(name string, xi, kappa float64) (Acquisition, error) {
	switch name {
	case "ei":
		return func(mu, best, _ float64) float64 {
			return math.Max(0, best-mu+xi)
		}, nil
	case "ucb":
		// для минимизации: оптимизм за счёт неопределённости
		return func(mu, best, spread float64) float64 {
			return (best - mu) + kappa*spread
		}, nil
	case "poi":
		return func(mu, best, spread float64) float64 {
			return normCDF((best - mu - xi) / (spread + 1e-9))
		}, nil
	default:
		return nil, fmt.Errorf("optimize: неизвестная acquisition %q", name)
	}
}

// normCDF — функция распределения стандартной нормали.
func normCDF(z float64) float64 {
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}
