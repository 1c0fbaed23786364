package optimize

import (
	"math/rand"
	"testing"
)

func TestSpace_Random(t *testing.T) {
	s := testSpace()
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		g := s.Random(rng)
		if !s.Contains(g) {
			t.Fatalf("Random выдал кандидата вне границ: %+v", g)
		}
		if g.Ki != s.FixedKi {
			t.Fatalf("ki должен быть закреплён на %v, получили %v", s.FixedKi, g.Ki)
		}
	}
}

func TestSpace_RandomTunedKi(t *testing.T) {
	s := testSpace()
	s.TuneKi = true
	rng := rand.New(rand.NewSource(42))
	seenNonFixed := false
	for i := 0; i < 50; i++ {
		g := s.Random(rng)
		if !s.Ki.Contains(g.Ki) {
			t.Fatalf("ki вне границ: %v", g.Ki)
		}
		if g.Ki != s.FixedKi {
			seenNonFixed = true
		}
	}
	if !seenNonFixed {
		t.Error("при tune_ki ki должен варьироваться")
	}
}

func TestSpace_Clamp(t *testing.T) {
	s := testSpace()
	g := s.Clamp(Gains{Kp: 200, Ki: 3, Kd: -1})
	if g.Kp != 50 || g.Kd != 0 {
		t.Errorf("Clamp: %+v", g)
	}
	if g.Ki != 0.5 {
		t.Errorf("Clamp должен закреплять ki, получили %v", g.Ki)
	}
}

func TestSpace_Validate(t *testing.T) {
	s := testSpace()
	if err := s.Validate(); err != nil {
		t.Errorf("валидное пространство: %v", err)
	}
	s.Kd = Range{Min: 5, Max: 1}
	if err := s.Validate(); err == nil {
		t.Error("ожидали ошибку на min > max")
	}
}
