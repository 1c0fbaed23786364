// Package optimize — пространство поиска гейнов, фитнес и четыре стратегии
// автонастройки (GA, PSO, релейная идентификация, байесовская оптимизация)
// с единым контрактом оценки кандидата на реальном объекте.
package optimize

import (
	"fmt"
	"math/rand"
)

// Gains — тройка коэффициентов ПИД.
type Gains struct {
	Kp float64
	Ki float64
	Kd float64
}

// Range — границы одного гейна; Min ≤ Max.
type Range struct {
	Min float64
	Max float64
}

// Span возвращает ширину диапазона.
func (r Range) Span() float64 { return r.Max - r.Min }

// Clamp зажимает v в границы.
func (r Range) Clamp(v float64) float64 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// Random возвращает равномерную точку диапазона.
func (r Range) Random(rng *rand.Rand) float64 {
	return r.Min + rng.Float64()*r.Span()
}

// Contains — v внутри границ.
func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

// Space — пространство поиска. При TuneKi == false ki исключён из поиска
// и во всех сгенерированных кандидатах закреплён на FixedKi (базовое значение).
type Space struct {
	Kp, Ki, Kd Range
	TuneKi     bool
	FixedKi    float64
}

// Validate проверяет инвариант min ≤ max по каждому гейну.
func (s Space) Validate() error {
	for _, g := range []struct {
		name string
		r    Range
	}{{"kp", s.Kp}, {"ki", s.Ki}, {"kd", s.Kd}} {
		if g.r.Min > g.r.Max {
			return fmt.Errorf("space: %s: min %g > max %g", g.name, g.r.Min, g.r.Max)
		}
	}
	return nil
}

// Random генерирует равномерного кандидата внутри границ.
func (s Space) Random(rng *rand.Rand) Gains {
	g := Gains{
		Kp: s.Kp.Random(rng),
		Ki: s.Ki.Random(rng),
		Kd: s.Kd.Random(rng),
	}
	if !s.TuneKi {
		g.Ki = s.FixedKi
	}
	return g
}

// Clamp зажимает кандидата в границы и закрепляет ki, если он не ищется.
func (s Space) Clamp(g Gains) Gains {
	g.Kp = s.Kp.Clamp(g.Kp)
	g.Ki = s.Ki.Clamp(g.Ki)
	g.Kd = s.Kd.Clamp(g.Kd)
	if !s.TuneKi {
		g.Ki = s.FixedKi
	}
	return g
}

// Contains — кандидат внутри границ (ki не проверяется, если закреплён).
func (s Space) Contains(g Gains) bool {
	if !s.Kp.Contains(g.Kp) || !s.Kd.Contains(g.Kd) {
		return false
	}
	if s.TuneKi && !s.Ki.Contains(g.Ki) {
		return false
	}
	return true
}
