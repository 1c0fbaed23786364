package autotune

import (
	"context"
	"math"
	"testing"

	"github.com/balansir/pidtune/internal/config"
	"github.com/balansir/pidtune/internal/optimize"
)

// simConfig — конфиг на встроенном симуляторе с укороченным бюджетом поиска.
func simConfig(algorithm string) *config.Config {
	cfg := config.Default()
	cfg.Device.Transport = "sim"
	cfg.Optimizer.Algorithm = algorithm
	cfg.Optimizer.Seed = 1
	cfg.Optimizer.GA.Population = 4
	cfg.Optimizer.GA.Generations = 2
	cfg.Optimizer.PSO.Particles = 4
	cfg.Optimizer.PSO.Iterations = 2
	cfg.Optimizer.Bayes.InitialSamples = 3
	cfg.Optimizer.Bayes.Iterations = 3
	cfg.Optimizer.Bayes.GridPoints = 4
	return cfg
}

func TestRun_OnSimulator(t *testing.T) {
	for _, algorithm := range []string{"ga", "pso", "bayes"} {
		t.Run(algorithm, func(t *testing.T) {
			cfg := simConfig(algorithm)
			best, err := Run(context.Background(), cfg, nil)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if math.IsInf(best.Fitness, 1) {
				t.Fatal("поиск не нашёл ни одного оценённого кандидата")
			}
			if best.Kp < cfg.Search.Kp.Min || best.Kp > cfg.Search.Kp.Max {
				t.Errorf("kp вне пространства поиска: %v", best.Kp)
			}
			if best.Kd < cfg.Search.Kd.Min || best.Kd > cfg.Search.Kd.Max {
				t.Errorf("kd вне пространства поиска: %v", best.Kd)
			}
			// ki закреплён на базовом значении
			if best.Ki != cfg.Search.Baseline.Ki {
				t.Errorf("ki: %v, want %v", best.Ki, cfg.Search.Baseline.Ki)
			}
		})
	}
}

func TestRun_RelayOnSimulator(t *testing.T) {
	cfg := simConfig("relay")
	best, err := Run(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if math.IsInf(best.Fitness, 1) {
		t.Fatal("релейная идентификация не дала оценённого кандидата")
	}
	// гейны Циглера–Никольса из предельного цикла положительны
	if best.Kp <= 0 || best.Ki <= 0 || best.Kd <= 0 {
		t.Errorf("выведенные гейны: %+v", best.Gains)
	}
}

func TestNew_UnknownTransport(t *testing.T) {
	cfg := config.Default()
	cfg.Device.Transport = "pigeon"
	if _, err := New(cfg, nil); err == nil {
		t.Error("ожидали ошибку на неизвестный транспорт")
	}
}

func TestNew_UnknownAlgorithm(t *testing.T) {
	cfg := simConfig("anneal")
	if _, err := New(cfg, nil); err == nil {
		t.Error("ожидали ошибку на неизвестный алгоритм")
	}
}

func TestTuner_ApplyBest(t *testing.T) {
	cfg := simConfig("ga")
	tn, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tn.Close()

	if err := tn.ApplyBest(optimize.Candidate{Fitness: math.Inf(1)}); err == nil {
		t.Error("неоценённый кандидат не должен применяться")
	}

	if err := tn.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	best, err := tn.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if err := tn.ApplyBest(best); err != nil {
		t.Errorf("ApplyBest: %v", err)
	}
}
