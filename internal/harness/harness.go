// Package harness — выполнение одного оцениваемого испытания на роботе:
// выдача команды, корреляция ответов по test_id, таймаут и классификация исхода.
// Одновременно в полёте не больше одного испытания на экземпляр.
package harness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/balansir/pidtune/internal/link"
	"github.com/balansir/pidtune/internal/logger"
	"github.com/balansir/pidtune/internal/wire"
)

// Status — исход испытания.
type Status int

const (
	StatusOK Status = iota
	StatusNack
	StatusTimeout
	StatusRemoteFailed
	StatusEmergencyInterrupt
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNack:
		return "nack"
	case StatusTimeout:
		return "timeout"
	case StatusRemoteFailed:
		return "remote_failed"
	case StatusEmergencyInterrupt:
		return "emergency_interrupt"
	default:
		return "unknown"
	}
}

// RelayPoint — один отсчёт релейного испытания.
type RelayPoint struct {
	T      float64 // секунды от начала испытания
	Angle  float64 // рад
	Output float64 // команда реле
}

// Outcome — классифицированный результат испытания. Метрики заполнены только
// при StatusOK; Relay — только для релейных испытаний (в том числе при
// таймауте: собранные отсчёты возвращаются, решение о достаточности циклов
// принимает алгоритм).
type Outcome struct {
	Status Status
	Reason string // уточнение для remote_failed

	ITAE             float64
	Overshoot        float64
	SteadyStateError float64

	Relay []RelayPoint
}

// Пределы дедлайна испытания: длительность манёвра + запас линии,
// зажатые в [3; 15] с. Релейное испытание прошивка ведёт до 30 с.
const (
	linkMargin       = 1500 * time.Millisecond
	minTrialDeadline = 3 * time.Second
	maxTrialDeadline = 15 * time.Second
	relayDeadline    = 30*time.Second + linkMargin
)

// ErrTrialInFlight — второй вызов до разрешения первого: ошибка вызывающего.
var ErrTrialInFlight = errors.New("harness: испытание уже в полёте")

// ErrLinkClosed — линия закрылась до завершения испытания.
var ErrLinkClosed = errors.New("harness: линия закрыта")

// Harness выполняет испытания через фасад линии. Повторов не делает:
// политика повторов — на уровне оптимизатора/сессии по причине отказа.
type Harness struct {
	link     link.Link
	trialDur time.Duration

	counter  atomic.Uint64
	salt     string
	mu       sync.Mutex
	inFlight bool

	// только для тестов: принудительный дедлайн вместо вычисленного
	deadlineOverride time.Duration
}

// New создаёт harness. trialDur — конфигурированная длительность манёвра метрик.
func New(l link.Link, trialDur time.Duration) *Harness {
	return &Harness{
		link:     l,
		trialDur: trialDur,
		salt:     uuid.NewString()[:8],
	}
}

// nextID выдаёт test_id, уникальный в пределах процесса: монотонный счётчик
// плюс случайная соль (не совпадёт с id незавершённых испытаний прежних запусков).
func (h *Harness) nextID() string {
	return fmt.Sprintf("%d-%s", h.counter.Add(1), h.salt)
}

func (h *Harness) begin() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.inFlight {
		return ErrTrialInFlight
	}
	h.inFlight = true
	return nil
}

func (h *Harness) end() {
	h.mu.Lock()
	h.inFlight = false
	h.mu.Unlock()
}

// metricsDeadline: clamp(длительность + запас, 3 с, 15 с).
func (h *Harness) metricsDeadline() time.Duration {
	if h.deadlineOverride > 0 {
		return h.deadlineOverride
	}
	d := h.trialDur + linkMargin
	if d < minTrialDeadline {
		d = minTrialDeadline
	}
	if d > maxTrialDeadline {
		d = maxTrialDeadline
	}
	return d
}

func (h *Harness) relayDeadline() time.Duration {
	if h.deadlineOverride > 0 {
		return h.deadlineOverride
	}
	return relayDeadline
}

// RunMetrics выполняет манёвр метрик с заданными гейнами и ждёт исхода.
func (h *Harness) RunMetrics(ctx context.Context, kp, ki, kd float64) (Outcome, error) {
	if err := h.begin(); err != nil {
		return Outcome{}, err
	}
	defer h.end()
	id := h.nextID()
	if err := h.link.Send(wire.NewRunMetricsTest(kp, ki, kd, id)); err != nil {
		return Outcome{}, fmt.Errorf("harness: send: %w", err)
	}
	return h.await(ctx, id, h.metricsDeadline(), false)
}

// RunRelay выполняет релейное испытание и ждёт исхода, собирая отсчёты угла.
func (h *Harness) RunRelay(ctx context.Context, amplitude float64) (Outcome, error) {
	if err := h.begin(); err != nil {
		return Outcome{}, err
	}
	defer h.end()
	id := h.nextID()
	if err := h.link.Send(wire.NewRunRelayTest(amplitude, id)); err != nil {
		return Outcome{}, fmt.Errorf("harness: send: %w", err)
	}
	return h.await(ctx, id, h.relayDeadline(), true)
}

// await ждёт разрешения испытания id. Приоритет: nack → remote_failed/interrupt →
// success (метрики из предшествовавшего metrics_result, иначе нули) → таймаут.
// События с чужим test_id отбрасываются как устаревшие.
func (h *Harness) await(ctx context.Context, id string, deadline time.Duration, relay bool) (Outcome, error) {
	timer := time.NewTimer(deadline)
	defer timer.Stop()

	var out Outcome
	haveMetrics := false
	for {
		select {
		case <-ctx.Done():
			_ = h.link.Send(wire.NewCancelTest())
			return Outcome{}, ctx.Err()
		case <-timer.C:
			_ = h.link.Send(wire.NewCancelTest())
			out.Status = StatusTimeout
			return out, nil
		case ev, ok := <-h.link.Events():
			if !ok {
				return Outcome{}, ErrLinkClosed
			}
			if ev.Type == wire.EvAck {
				// ack может прийти без test_id; сопоставляем по команде
				if ev.TestID != "" && ev.TestID != id {
					continue
				}
				if !ev.Succeeded() && ev.Command != wire.CmdSetParam && ev.Command != wire.CmdCancelTest {
					out.Status = StatusNack
					out.Reason = ev.Message
					return out, nil
				}
				continue
			}
			if ev.TestID != id {
				continue // чужое или устаревшее событие
			}
			switch {
			case ev.Type == wire.EvStatusUpdate:
				// test_started и прочие статусы — информационные
			case ev.IsMetrics():
				out.ITAE = ev.ITAE
				out.Overshoot = ev.Overshoot
				out.SteadyStateError = ev.SteadyStateError
				haveMetrics = true
			case ev.Type == wire.EvRelayState:
				if relay {
					out.Relay = append(out.Relay, RelayPoint{T: ev.Time, Angle: ev.Angle, Output: ev.RelayOutput})
				}
			case ev.Type == wire.EvTestComplete:
				if !ev.Succeeded() {
					if ev.Reason == wire.ReasonEmergencyInterrupt {
						out.Status = StatusEmergencyInterrupt
					} else {
						out.Status = StatusRemoteFailed
						out.Reason = ev.Reason
					}
					return out, nil
				}
				if !relay && !haveMetrics {
					// прошивка завершила тест, не прислав метрик; считаем
					// успехом с нулевыми метриками (поведение зафиксировано)
					logger.Info("harness: test_complete без metrics_result (id %s)", id)
				}
				out.Status = StatusOK
				return out, nil
			}
		}
	}
}
