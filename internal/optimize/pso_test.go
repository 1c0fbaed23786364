package optimize

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/balansir/pidtune/internal/config"
)

func psoTestConfig() config.PSOConfig {
	return config.PSOConfig{
		Particles:  5,
		Iterations: 6,
		Inertia:    0.7,
		Cognitive:  1.5,
		Social:     1.5,
	}
}

func TestPSO_Run(t *testing.T) {
	space := testSpace()
	o := NewPSO(psoTestConfig(), space, rand.New(rand.NewSource(3)))
	p := &mockPlant{measure: bowl}
	sink := &recordSink{}

	best, err := o.Run(p, sink)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if math.IsInf(best.Fitness, 1) {
		t.Fatal("best не оценён")
	}
	if len(sink.evals) != 5*6 {
		t.Errorf("оценок %d, ожидали %d", len(sink.evals), 5*6)
	}
	for i := 1; i < len(sink.progress); i++ {
		if sink.progress[i].Fitness > sink.progress[i-1].Fitness {
			t.Fatalf("глобальный рекорд ухудшился: %v → %v",
				sink.progress[i-1].Fitness, sink.progress[i].Fitness)
		}
	}
}

func TestPSO_BoundsAndFixedKi(t *testing.T) {
	space := testSpace()
	o := NewPSO(psoTestConfig(), space, rand.New(rand.NewSource(9)))
	p := &mockPlant{measure: bowl}

	if _, err := o.Run(p, &recordSink{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, c := range p.calls {
		if !space.Contains(c) {
			t.Fatalf("частица вне границ: %+v", c)
		}
		if c.Ki != space.FixedKi {
			t.Fatalf("ki не закреплён: %v", c.Ki)
		}
	}
}

func TestPSO_StopPropagates(t *testing.T) {
	o := NewPSO(psoTestConfig(), testSpace(), rand.New(rand.NewSource(3)))
	n := 0
	p := &mockPlant{measure: func(gs Gains) (float64, error) {
		n++
		if n > 2 {
			return 0, ErrStopped
		}
		return bowl(gs)
	}}

	_, err := o.Run(p, &recordSink{})
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("ожидали ErrStopped, получили %v", err)
	}
}
