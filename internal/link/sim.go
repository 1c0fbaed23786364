package link

import (
	"math"
	"math/rand"
	"sync"

	"github.com/balansir/pidtune/internal/logger"
	"github.com/balansir/pidtune/internal/wire"
)

// Параметры модели маятника и испытаний симулятора.
const (
	simGravity   = 25.0  // g/L, 1/с²
	simDamping   = 0.5   // вязкое трение, 1/с
	simTorque    = 40.0  // максимальный момент мотора, рад/с² при u=1
	simStep      = 0.005 // шаг интегрирования, с
	simSampleDt  = 0.02  // период relay_state, с
	simFallAngle = math.Pi / 2

	simTrialDurS = 4.0  // манёвр метрик
	simRelayDurS = 30.0 // релейное испытание (лимит прошивки)

	simDisturbance = 0.25 // начальное отклонение манёвра, рад
	simNoise       = 1e-3 // шум датчика угла, рад
	simRelayHyst   = 0.05 // гистерезис реле, рад: поддерживает предельный цикл

	// клампы ПИД-регулятора прошивки
	simMaxIntegral = 10.0
	simMaxOutput   = 1.0
)

// Sim — встроенный симулятор робота: отвечает на команды прошивочного
// протокола, интегрируя маятник θ'' = g/L·sinθ − damping·θ' + torque·u
// под управлением командуемого ПИД (метрики) или реле (bang-bang).
// Детерминирован при фиксированном seed.
type Sim struct {
	events chan wire.Event

	mu       sync.Mutex
	closed   bool
	busy     bool
	params   map[string]float64
	failNext string // причина отказа следующего испытания; "" — нет
	dropped  int
	rng      *rand.Rand
}

// simEventBuffer — буфер канала событий симулятора: испытание считается
// мгновенно, буфер должен вмещать все отсчёты релейного теста целиком.
const simEventBuffer = 2048

// NewSim создаёт симулятор. seed = 0 — фиксированное зерно по умолчанию.
func NewSim(seed int64) *Sim {
	if seed == 0 {
		seed = 1
	}
	return &Sim{
		events: make(chan wire.Event, simEventBuffer),
		params: make(map[string]float64),
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// FailNext заставляет симулятор завалить следующее испытание указанным
// способом: "nack", "timeout", "remote_failed" или "emergency_interrupt".
func (s *Sim) FailNext(reason string) {
	s.mu.Lock()
	s.failNext = reason
	s.mu.Unlock()
}

// Param возвращает последнее записанное значение параметра (set_param).
func (s *Sim) Param(key string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.params[key]
	return v, ok
}

// Send обрабатывает команду. Испытания выполняются в отдельной горутине,
// события уходят в Events по мере генерации.
func (s *Sim) Send(cmd interface{}) error {
	switch m := cmd.(type) {
	case wire.RunMetricsTest:
		s.startTrial(m.TestID, func(fail string) {
			s.runMetrics(m, fail)
		})
	case wire.RunRelayTest:
		s.startTrial(m.TestID, func(fail string) {
			s.runRelay(m, fail)
		})
	case wire.CancelTest:
		// симулятор считает испытания мгновенно, отменять нечего
	case wire.SetParam:
		s.mu.Lock()
		s.params[m.Key] = m.Value
		s.mu.Unlock()
		s.emit(wire.Event{Type: wire.EvAck, Command: wire.CmdSetParam, Success: boolPtr(true)})
	default:
		logger.Info("sim: неизвестная команда %T", cmd)
	}
	return nil
}

// startTrial резервирует симулятор под одно испытание и снимает флаг отказа.
func (s *Sim) startTrial(testID string, run func(fail string)) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		s.emit(wire.Event{Type: wire.EvAck, TestID: testID, Success: boolPtr(false), Message: "busy"})
		return
	}
	s.busy = true
	fail := s.failNext
	s.failNext = ""
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.busy = false
			s.mu.Unlock()
		}()
		run(fail)
	}()
}

func (s *Sim) runMetrics(m wire.RunMetricsTest, fail string) {
	if !s.openTrial(wire.CmdRunMetricsTest, m.TestID, fail) {
		return
	}

	p := simPID{kp: m.Kp, ki: m.Ki, kd: m.Kd}
	theta, omega := simDisturbance, 0.0
	var itae, overshoot, tail, tailN float64
	fell := false
	for t := 0.0; t < simTrialDurS; t += simStep {
		u := p.update(theta, omega)
		theta, omega = simIntegrate(theta, omega, -u)
		if math.Abs(theta) > simFallAngle {
			fell = true
			break
		}
		itae += t * math.Abs(theta) * simStep
		// перерегулирование: заброс за уставку в противоположную сторону
		if -theta > overshoot {
			overshoot = -theta
		}
		if t > simTrialDurS*0.9 {
			tail += math.Abs(theta)
			tailN++
		}
	}

	if fell {
		s.emit(wire.Event{Type: wire.EvTestComplete, TestID: m.TestID, Success: boolPtr(false), Reason: "fell_over"})
		return
	}
	sse := 0.0
	if tailN > 0 {
		sse = tail / tailN
	}
	s.emit(wire.Event{
		Type:             wire.EvMetricsResult,
		TestID:           m.TestID,
		ITAE:             itae,
		Overshoot:        overshoot / simDisturbance,
		SteadyStateError: sse,
	})
	s.emit(wire.Event{Type: wire.EvTestComplete, TestID: m.TestID, Success: boolPtr(true)})
}

func (s *Sim) runRelay(m wire.RunRelayTest, fail string) {
	if !s.openTrial(wire.CmdRunRelayTest, m.TestID, fail) {
		return
	}

	amp := m.Amplitude
	if amp <= 0 || amp > simMaxOutput {
		s.emit(wire.Event{Type: wire.EvTestComplete, TestID: m.TestID, Success: boolPtr(false), Reason: "bad_amplitude"})
		return
	}
	theta, omega := 0.02, 0.0 // малый толчок, чтобы реле включилось
	nextSample := 0.0
	u := amp
	for t := 0.0; t < simRelayDurS; t += simStep {
		// реле с гистерезисом: переключение на границах ±simRelayHyst
		if theta > simRelayHyst {
			u = -amp
		} else if theta < -simRelayHyst {
			u = amp
		}
		theta, omega = simIntegrate(theta, omega, u)
		if math.Abs(theta) > simFallAngle {
			s.emit(wire.Event{Type: wire.EvTestComplete, TestID: m.TestID, Success: boolPtr(false), Reason: "fell_over"})
			return
		}
		if t >= nextSample {
			s.mu.Lock()
			noise := (s.rng.Float64()*2 - 1) * simNoise
			s.mu.Unlock()
			s.emit(wire.Event{
				Type:        wire.EvRelayState,
				TestID:      m.TestID,
				Time:        t,
				Angle:       theta + noise,
				RelayOutput: u,
			})
			nextSample += simSampleDt
		}
	}
	s.emit(wire.Event{Type: wire.EvTestComplete, TestID: m.TestID, Success: boolPtr(true)})
}

// openTrial шлёт ack и status_update либо разыгрывает запрошенный отказ.
// false — испытание не продолжается.
func (s *Sim) openTrial(command, testID, fail string) bool {
	if fail == "nack" {
		s.emit(wire.Event{Type: wire.EvAck, Command: command, TestID: testID, Success: boolPtr(false), Message: "rejected"})
		return false
	}
	s.emit(wire.Event{Type: wire.EvAck, Command: command, TestID: testID, Success: boolPtr(true)})
	s.emit(wire.Event{Type: wire.EvStatusUpdate, TestID: testID, Message: "test_started"})
	switch fail {
	case "timeout":
		// молчим: терминального события не будет
		return false
	case "remote_failed":
		s.emit(wire.Event{Type: wire.EvTestComplete, TestID: testID, Success: boolPtr(false), Reason: "motor_fault"})
		return false
	case wire.ReasonEmergencyInterrupt:
		s.emit(wire.Event{Type: wire.EvTestComplete, TestID: testID, Success: boolPtr(false), Reason: wire.ReasonEmergencyInterrupt})
		return false
	}
	return true
}

// emit отправляет событие без блокировки; при переполненном буфере событие
// теряется (линия с потерями — корреляция по test_id это переживает).
func (s *Sim) emit(ev wire.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
		s.dropped++
	}
}

// Events возвращает канал событий симулятора.
func (s *Sim) Events() <-chan wire.Event {
	return s.events
}

// Close закрывает канал событий.
func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.events)
	return nil
}

// simPID — ПИД прошивки: интеграл и выход ограничены, выход — доля момента [-1;1].
type simPID struct {
	kp, ki, kd float64
	integral   float64
}

func (p *simPID) update(theta, omega float64) float64 {
	p.integral += theta * simStep
	if p.integral > simMaxIntegral {
		p.integral = simMaxIntegral
	} else if p.integral < -simMaxIntegral {
		p.integral = -simMaxIntegral
	}
	out := p.kp*theta + p.ki*p.integral + p.kd*omega
	if out > simMaxOutput {
		out = simMaxOutput
	} else if out < -simMaxOutput {
		out = -simMaxOutput
	}
	return out
}

// simIntegrate делает один шаг Эйлера: u — нормированная команда мотора.
func simIntegrate(theta, omega, u float64) (float64, float64) {
	acc := simGravity*math.Sin(theta) - simDamping*omega + simTorque*u
	omega += acc * simStep
	theta += omega * simStep
	return theta, omega
}

func boolPtr(b bool) *bool { return &b }
