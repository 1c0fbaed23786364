package optimize

import (
	"fmt"
	"math"
)

// Regressor — сменная суррогатная модель для байесовской оптимизации:
// Fit по накопленным наблюдениям, Predict в произвольной точке. Байесовский
// оптимизатор не зависит от конкретной регрессии.
type Regressor interface {
	Fit(xs [][3]float64, ys []float64) error
	Predict(x [3]float64) float64
}

// quadFeatures — число признаков квадратичной модели.
const quadFeatures = 7

// ridgeLambda — регуляризация нормальных уравнений; спасает от вырождения
// при малом числе наблюдений и закреплённом ki.
const ridgeLambda = 1e-6

// Quadratic — квадратичная модель y = w₀ + Σ wᵢxᵢ + Σ wᵢ₊₃xᵢ², обученная
// методом наименьших квадратов (гребневые нормальные уравнения).
// Ожидает координаты, нормированные в единичный куб.
type Quadratic struct {
	w      [quadFeatures]float64
	fitted bool
}

// NewQuadratic создаёт необученную модель.
func NewQuadratic() *Quadratic {
	return &Quadratic{}
}

func quadPhi(x [3]float64) [quadFeatures]float64 {
	return [quadFeatures]float64{
		1,
		x[0], x[1], x[2],
		x[0] * x[0], x[1] * x[1], x[2] * x[2],
	}
}

// Fit обучает модель; нужно минимум 2 наблюдения.
func (q *Quadratic) Fit(xs [][3]float64, ys []float64) error {
	if len(xs) != len(ys) {
		return fmt.Errorf("regress: разная длина выборок: %d и %d", len(xs), len(ys))
	}
	if len(xs) < 2 {
		return fmt.Errorf("regress: мало наблюдений: %d", len(xs))
	}

	// A = ΦᵀΦ + λI, b = Φᵀy
	var a [quadFeatures][quadFeatures]float64
	var b [quadFeatures]float64
	for k := range xs {
		phi := quadPhi(xs[k])
		for i := 0; i < quadFeatures; i++ {
			b[i] += phi[i] * ys[k]
			for j := 0; j < quadFeatures; j++ {
				a[i][j] += phi[i] * phi[j]
			}
		}
	}
	for i := 0; i < quadFeatures; i++ {
		a[i][i] += ridgeLambda
	}

	w, err := solveLinear(a, b)
	if err != nil {
		return err
	}
	q.w = w
	q.fitted = true
	return nil
}

// Predict возвращает прогноз модели; до обучения — 0.
func (q *Quadratic) Predict(x [3]float64) float64 {
	if !q.fitted {
		return 0
	}
	phi := quadPhi(x)
	var y float64
	for i := 0; i < quadFeatures; i++ {
		y += q.w[i] * phi[i]
	}
	return y
}

// solveLinear решает Aw = b гауссовым исключением с выбором главного элемента.
func solveLinear(a [quadFeatures][quadFeatures]float64, b [quadFeatures]float64) ([quadFeatures]float64, error) {
	const n = quadFeatures
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return [n]float64{}, fmt.Errorf("regress: вырожденная система (столбец %d)", col)
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]
		for r := col + 1; r < n; r++ {
			f := a[r][col] / a[col][col]
			for c := col; c < n; c++ {
				a[r][c] -= f * a[col][c]
			}
			b[r] -= f * b[col]
		}
	}
	var w [n]float64
	for r := n - 1; r >= 0; r-- {
		s := b[r]
		for c := r + 1; c < n; c++ {
			s -= a[r][c] * w[c]
		}
		w[r] = s / a[r][r]
	}
	return w, nil
}
