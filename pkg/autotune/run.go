// Package autotune предоставляет сборку и запуск сессии автонастройки
// ПИД-гейнов для встраивания (cmd/pidtune и внешние обвязки).
package autotune

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/balansir/pidtune/internal/baseline"
	"github.com/balansir/pidtune/internal/config"
	"github.com/balansir/pidtune/internal/harness"
	"github.com/balansir/pidtune/internal/link"
	"github.com/balansir/pidtune/internal/logger"
	"github.com/balansir/pidtune/internal/optimize"
	"github.com/balansir/pidtune/internal/session"
)

// Tuner — собранная сессия автонастройки поверх открытого транспорта.
// Close закрывает транспорт; после Close сессия непригодна.
type Tuner struct {
	sess  *session.Session
	guard *baseline.Guard
	link  link.Link
	name  string
}

// New открывает транспорт по конфигу и собирает сессию. sink == nil —
// логирующий приёмник по умолчанию.
func New(cfg *config.Config, sink session.Sink) (*Tuner, error) {
	l, err := link.New(cfg.Device)
	if err != nil {
		return nil, err
	}

	base := optimize.Gains{
		Kp: cfg.Search.Baseline.Kp,
		Ki: cfg.Search.Baseline.Ki,
		Kd: cfg.Search.Baseline.Kd,
	}
	space := optimize.Space{
		Kp:      optimize.Range(cfg.Search.Kp),
		Ki:      optimize.Range(cfg.Search.Ki),
		Kd:      optimize.Range(cfg.Search.Kd),
		TuneKi:  cfg.Search.TuneKi,
		FixedKi: base.Ki,
	}

	seed := cfg.Optimizer.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	strat, err := optimize.New(cfg.Optimizer, space, base, rand.New(rand.NewSource(seed)))
	if err != nil {
		_ = l.Close()
		return nil, err
	}

	h := harness.New(l, time.Duration(cfg.Trial.DurationMs)*time.Millisecond)
	guard := baseline.New(l, cfg.Loop, base)
	logger.Info("autotune: контур %s, алгоритм %s, зерно %d", cfg.Loop, strat.Name(), seed)
	return &Tuner{
		sess:  session.New(strat, h, guard, sink),
		guard: guard,
		link:  l,
		name:  strat.Name(),
	}, nil
}

// Algorithm возвращает имя выбранного алгоритма.
func (t *Tuner) Algorithm() string { return t.name }

// State возвращает состояние сессии.
func (t *Tuner) State() session.State { return t.sess.State() }

// Start запускает сессию; ctx отменяет поиск как останов.
func (t *Tuner) Start(ctx context.Context) error { return t.sess.Start(ctx) }

// Pause приостанавливает поиск перед следующим испытанием.
func (t *Tuner) Pause() { t.sess.Pause() }

// Resume возобновляет приостановленный поиск.
func (t *Tuner) Resume() { t.sess.Resume() }

// Stop останавливает сессию; Wait вернёт лучшего найденного кандидата.
func (t *Tuner) Stop() { t.sess.Stop() }

// Wait блокируется до конца сессии.
func (t *Tuner) Wait() (optimize.Candidate, error) {
	return t.sess.Wait()
}

// ApplyBest применяет гейны кандидата на робота как новую рабочую
// конфигурацию (после этого они переживают restore следующей сессии).
func (t *Tuner) ApplyBest(c optimize.Candidate) error {
	if math.IsInf(c.Fitness, 1) {
		return fmt.Errorf("autotune: нет оценённого кандидата для применения")
	}
	if err := t.guard.Apply(c.Gains); err != nil {
		return err
	}
	logger.Info("autotune: применены гейны kp=%.4g ki=%.4g kd=%.4g", c.Kp, c.Ki, c.Kd)
	return nil
}

// Close закрывает транспорт.
func (t *Tuner) Close() error { return t.link.Close() }

// Run выполняет одну сессию целиком: сборка, запуск, ожидание результата.
func Run(ctx context.Context, cfg *config.Config, sink session.Sink) (optimize.Candidate, error) {
	t, err := New(cfg, sink)
	if err != nil {
		return optimize.Candidate{}, err
	}
	defer t.Close()
	if err := t.Start(ctx); err != nil {
		return optimize.Candidate{}, err
	}
	return t.Wait()
}
