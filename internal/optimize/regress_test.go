package optimize

import (
	"math"
	"testing"
)

func TestQuadratic_Fit(t *testing.T) {
	// точная квадратичная зависимость должна восстанавливаться почти без ошибки
	f := func(x [3]float64) float64 {
		return 1 + 2*x[0] - x[2] + 3*x[0]*x[0] + 0.5*x[1]*x[1]
	}
	var xs [][3]float64
	var ys []float64
	for _, a := range []float64{0, 0.25, 0.5, 0.75, 1} {
		for _, b := range []float64{0, 0.5, 1} {
			for _, c := range []float64{0, 0.5, 1} {
				x := [3]float64{a, b, c}
				xs = append(xs, x)
				ys = append(ys, f(x))
			}
		}
	}

	q := NewQuadratic()
	if err := q.Fit(xs, ys); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	for _, x := range [][3]float64{{0.1, 0.2, 0.3}, {0.9, 0.1, 0.7}, {0.5, 0.5, 0.5}} {
		got := q.Predict(x)
		want := f(x)
		if math.Abs(got-want) > 1e-3 {
			t.Errorf("Predict(%v) = %v, want %v", x, got, want)
		}
	}
}

func TestQuadratic_TooFewSamples(t *testing.T) {
	q := NewQuadratic()
	if err := q.Fit([][3]float64{{0, 0, 0}}, []float64{1}); err == nil {
		t.Error("ожидали ошибку на одно наблюдение")
	}
	if err := q.Fit([][3]float64{{0, 0, 0}}, []float64{1, 2}); err == nil {
		t.Error("ожидали ошибку на разную длину выборок")
	}
}

func TestQuadratic_PredictBeforeFit(t *testing.T) {
	q := NewQuadratic()
	if got := q.Predict([3]float64{0.5, 0.5, 0.5}); got != 0 {
		t.Errorf("до обучения Predict должен давать 0, получили %v", got)
	}
}

func TestQuadratic_DegenerateKi(t *testing.T) {
	// все наблюдения с одинаковым ki (закреплённый ген): гребневая
	// регуляризация должна спасать от вырождения
	var xs [][3]float64
	var ys []float64
	for _, a := range []float64{0, 0.2, 0.4, 0.6, 0.8, 1} {
		for _, c := range []float64{0, 0.5, 1} {
			x := [3]float64{a, 0.05, c}
			xs = append(xs, x)
			ys = append(ys, (a-0.4)*(a-0.4)+c)
		}
	}
	q := NewQuadratic()
	if err := q.Fit(xs, ys); err != nil {
		t.Fatalf("Fit на вырожденной выборке: %v", err)
	}
	lo := q.Predict([3]float64{0.4, 0.05, 0})
	hi := q.Predict([3]float64{1, 0.05, 1})
	if lo >= hi {
		t.Errorf("модель не отражает рельеф: Predict(мин)=%v, Predict(макс)=%v", lo, hi)
	}
}
