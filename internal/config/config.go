// Package config — конфигурация pidtune: устройство, контур, пространство поиска
// и параметры оптимизаторов. Неизвестные ключи YAML игнорируются.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config — конфигурация pidtune.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Loop      string          `yaml:"loop"` // balance, speed, position
	Trial     TrialConfig     `yaml:"trial"`
	Search    SearchConfig    `yaml:"search"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
}

// DeviceConfig — транспорт до робота. Если transport пуст, перебираются
// serial, затем ws — первый открывшийся выигрывает.
type DeviceConfig struct {
	Transport string `yaml:"transport"` // serial, ws, sim; пусто — перебор
	Port      string `yaml:"port"`
	Baud      int    `yaml:"baud"`
	URL       string `yaml:"url"`
	Seed      int64  `yaml:"seed"` // зерно симулятора (transport: sim)
}

// TrialConfig — параметры одного испытания.
type TrialConfig struct {
	DurationMs int `yaml:"duration_ms"`
}

// GainRange — границы одного гейна.
type GainRange struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// GainsConfig — тройка гейнов.
type GainsConfig struct {
	Kp float64 `yaml:"kp"`
	Ki float64 `yaml:"ki"`
	Kd float64 `yaml:"kd"`
}

// SearchConfig — пространство поиска и исходные (базовые) гейны контура.
// Baseline — гейны, действующие на роботе до начала сессии; они же
// восстанавливаются при паузе/останове.
type SearchConfig struct {
	Kp       GainRange   `yaml:"kp"`
	Ki       GainRange   `yaml:"ki"`
	Kd       GainRange   `yaml:"kd"`
	TuneKi   bool        `yaml:"tune_ki"` // false — ki закреплён на baseline
	Baseline GainsConfig `yaml:"baseline"`
}

// OptimizerConfig — выбор алгоритма и его параметры.
type OptimizerConfig struct {
	Algorithm string      `yaml:"algorithm"` // ga, pso, relay, bayes
	Seed      int64       `yaml:"seed"`      // зерно ГСЧ поиска; 0 — от времени
	GA        GAConfig    `yaml:"ga"`
	PSO       PSOConfig   `yaml:"pso"`
	Relay     RelayConfig `yaml:"relay"`
	Bayes     BayesConfig `yaml:"bayes"`
}

// GAConfig — генетический алгоритм.
type GAConfig struct {
	Population    int     `yaml:"population"`
	Generations   int     `yaml:"generations"`
	CrossoverRate float64 `yaml:"crossover_rate"`
	MutationRate  float64 `yaml:"mutation_rate"`
	Elitism       bool    `yaml:"elitism"`
}

// PSOConfig — рой частиц.
type PSOConfig struct {
	Particles  int     `yaml:"particles"`
	Iterations int     `yaml:"iterations"`
	Inertia    float64 `yaml:"inertia"`
	Cognitive  float64 `yaml:"cognitive"`
	Social     float64 `yaml:"social"`
}

// RelayConfig — релейная идентификация (Циглер–Никольс).
type RelayConfig struct {
	Amplitude float64 `yaml:"amplitude"`
	MinCycles int     `yaml:"min_cycles"`
}

// BayesConfig — байесовская оптимизация с суррогатной моделью.
type BayesConfig struct {
	InitialSamples int     `yaml:"initial_samples"`
	Iterations     int     `yaml:"iterations"`
	GridPoints     int     `yaml:"grid_points"` // точек сетки на измерение
	Acquisition    string  `yaml:"acquisition"` // ei, ucb, poi
	Xi             float64 `yaml:"xi"`
	Kappa          float64 `yaml:"kappa"`
	SeedBaseline   bool    `yaml:"seed_baseline"` // добавить baseline как затравку
}

// Default возвращает конфиг по умолчанию (симулятор, контур balance, GA).
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Transport: "",
			Port:      "/dev/ttyUSB0",
			Baud:      115200,
			URL:       "ws://192.168.4.1:81/ws",
		},
		Loop:  "balance",
		Trial: TrialConfig{DurationMs: 4000},
		Search: SearchConfig{
			Kp:       GainRange{Min: 0, Max: 50},
			Ki:       GainRange{Min: 0, Max: 10},
			Kd:       GainRange{Min: 0, Max: 5},
			TuneKi:   false,
			Baseline: GainsConfig{Kp: 10, Ki: 0.5, Kd: 0.5},
		},
		Optimizer: OptimizerConfig{
			Algorithm: "ga",
			GA: GAConfig{
				Population:    20,
				Generations:   30,
				CrossoverRate: 0.7,
				MutationRate:  0.1,
				Elitism:       true,
			},
			PSO: PSOConfig{
				Particles:  20,
				Iterations: 30,
				Inertia:    0.7,
				Cognitive:  1.5,
				Social:     1.5,
			},
			Relay: RelayConfig{
				Amplitude: 0.5,
				MinCycles: 3,
			},
			Bayes: BayesConfig{
				InitialSamples: 5,
				Iterations:     25,
				GridPoints:     8,
				Acquisition:    "ei",
				Xi:             0.01,
				Kappa:          1.0,
				SeedBaseline:   true,
			},
		},
	}
}

// Load читает конфиг из YAML поверх значений по умолчанию: отсутствующие
// ключи сохраняют дефолты.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(c)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate проверяет инварианты конфига: известный контур и min ≤ max по каждому гейну.
func (c *Config) Validate() error {
	switch c.Loop {
	case "balance", "speed", "position":
	default:
		return fmt.Errorf("config: неизвестный контур %q", c.Loop)
	}
	for _, r := range []struct {
		name string
		r    GainRange
	}{{"kp", c.Search.Kp}, {"ki", c.Search.Ki}, {"kd", c.Search.Kd}} {
		if r.r.Min > r.r.Max {
			return fmt.Errorf("config: search.%s: min %g > max %g", r.name, r.r.Min, r.r.Max)
		}
	}
	return nil
}

// applyDefaults добивает нулевые значения, которые YAML мог затереть явным нулём
// там, где ноль не имеет смысла.
func applyDefaults(c *Config) {
	d := Default()
	if c.Loop == "" {
		c.Loop = d.Loop
	}
	if c.Trial.DurationMs <= 0 {
		c.Trial.DurationMs = d.Trial.DurationMs
	}
	if c.Device.Baud == 0 {
		c.Device.Baud = d.Device.Baud
	}
	if c.Optimizer.Algorithm == "" {
		c.Optimizer.Algorithm = d.Optimizer.Algorithm
	}
	if c.Optimizer.GA.Population <= 0 {
		c.Optimizer.GA.Population = d.Optimizer.GA.Population
	}
	if c.Optimizer.GA.Generations <= 0 {
		c.Optimizer.GA.Generations = d.Optimizer.GA.Generations
	}
	if c.Optimizer.PSO.Particles <= 0 {
		c.Optimizer.PSO.Particles = d.Optimizer.PSO.Particles
	}
	if c.Optimizer.PSO.Iterations <= 0 {
		c.Optimizer.PSO.Iterations = d.Optimizer.PSO.Iterations
	}
	if c.Optimizer.Relay.Amplitude <= 0 {
		c.Optimizer.Relay.Amplitude = d.Optimizer.Relay.Amplitude
	}
	if c.Optimizer.Relay.MinCycles <= 0 {
		c.Optimizer.Relay.MinCycles = d.Optimizer.Relay.MinCycles
	}
	if c.Optimizer.Bayes.InitialSamples <= 0 {
		c.Optimizer.Bayes.InitialSamples = d.Optimizer.Bayes.InitialSamples
	}
	if c.Optimizer.Bayes.Iterations <= 0 {
		c.Optimizer.Bayes.Iterations = d.Optimizer.Bayes.Iterations
	}
	if c.Optimizer.Bayes.GridPoints <= 1 {
		c.Optimizer.Bayes.GridPoints = d.Optimizer.Bayes.GridPoints
	}
	if c.Optimizer.Bayes.Acquisition == "" {
		c.Optimizer.Bayes.Acquisition = d.Optimizer.Bayes.Acquisition
	}
}
