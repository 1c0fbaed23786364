// Package baseline — страховка базовыми гейнами: снимок гейнов, действующих
// до сессии, и их возврат на робота при паузе/останове. Объект не должен
// оставаться под найденными (возможно неустойчивыми) гейнами, когда сессия
// не идёт. Это единственное место, пишущее гейны на робота вне испытания.
package baseline

import (
	"fmt"
	"sync"

	"github.com/balansir/pidtune/internal/link"
	"github.com/balansir/pidtune/internal/logger"
	"github.com/balansir/pidtune/internal/optimize"
	"github.com/balansir/pidtune/internal/wire"
)

// Guard хранит последние применённые гейны контура и умеет вернуть их снимок
// на робота. loop — активный контур: balance, speed или position.
type Guard struct {
	link link.Link
	loop string

	mu       sync.Mutex
	applied  optimize.Gains // последняя применённая конфигурация
	captured optimize.Gains // снимок на момент старта сессии
	have     bool
}

// New создаёт guard для контура loop. active — гейны, действующие на роботе
// сейчас (из последней применённой конфигурации).
func New(l link.Link, loop string, active optimize.Gains) *Guard {
	return &Guard{link: l, loop: loop, applied: active}
}

// Capture снимает текущие применённые гейны как базовые. Вызывается один раз
// на старте сессии; повторный вызов — явный пересъём.
func (g *Guard) Capture() optimize.Gains {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.captured = g.applied
	g.have = true
	return g.captured
}

// Captured возвращает снятые базовые гейны.
func (g *Guard) Captured() (optimize.Gains, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.captured, g.have
}

// Restore отправляет базовые гейны на робота (set_param по каждому гейну).
func (g *Guard) Restore() error {
	g.mu.Lock()
	if !g.have {
		g.mu.Unlock()
		return fmt.Errorf("baseline: restore до capture")
	}
	gains := g.captured
	g.mu.Unlock()

	if err := g.send(gains); err != nil {
		return err
	}
	g.mu.Lock()
	g.applied = gains
	g.mu.Unlock()
	logger.Info("baseline: восстановлены гейны %s: kp=%.4g ki=%.4g kd=%.4g",
		g.loop, gains.Kp, gains.Ki, gains.Kd)
	return nil
}

// Apply применяет произвольные гейны (например, лучшие найденные по итогам
// сессии) и запоминает их как последнюю применённую конфигурацию.
func (g *Guard) Apply(gains optimize.Gains) error {
	if err := g.send(gains); err != nil {
		return err
	}
	g.mu.Lock()
	g.applied = gains
	g.mu.Unlock()
	return nil
}

func (g *Guard) send(gains optimize.Gains) error {
	for _, kv := range []struct {
		key string
		val float64
	}{
		{g.loop + ".kp", gains.Kp},
		{g.loop + ".ki", gains.Ki},
		{g.loop + ".kd", gains.Kd},
	} {
		if err := g.link.Send(wire.NewSetParam(kv.key, kv.val)); err != nil {
			return fmt.Errorf("baseline: set_param %s: %w", kv.key, err)
		}
	}
	return nil
}
