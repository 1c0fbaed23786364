// Package session — контроллер сессии автонастройки: машина состояний
// Idle → Running → Paused → Stopped, кооперативные пауза/останов и политика
// повтора кандидата после аварийного прерывания. Одна живая сессия на контур;
// stop терминален — новая сессия создаётся заново.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/balansir/pidtune/internal/baseline"
	"github.com/balansir/pidtune/internal/harness"
	"github.com/balansir/pidtune/internal/logger"
	"github.com/balansir/pidtune/internal/optimize"
)

// State — состояние сессии.
type State int

const (
	Idle State = iota
	Running
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// pollInterval — шаг опроса в паузе (кооперативная точка, не реальное время).
const pollInterval = 100 * time.Millisecond

// Sink получает все наблюдаемые события сессии. Каждый отказ испытания
// проходит через TrialFailed — молча не теряется ничего.
type Sink interface {
	Evaluated(c optimize.Candidate)
	Progress(best optimize.Candidate, iter, total int)
	TrialFailed(g optimize.Gains, reason string)
	StateChanged(s State, cause string)
	Done(best optimize.Candidate, err error)
}

// Session владеет жизненным циклом одного поиска.
type Session struct {
	strategy optimize.Strategy
	harness  *harness.Harness
	guard    *baseline.Guard
	sink     Sink

	mu             sync.Mutex
	state          State
	pendingRestore bool
	runCtx         context.Context

	done   chan struct{}
	best   optimize.Candidate
	runErr error

	poll time.Duration // в тестах укорачивается
}

// New создаёт сессию в состоянии Idle.
func New(strategy optimize.Strategy, h *harness.Harness, guard *baseline.Guard, sink Sink) *Session {
	if sink == nil {
		sink = LogSink{}
	}
	return &Session{
		strategy: strategy,
		harness:  h,
		guard:    guard,
		sink:     sink,
		state:    Idle,
		done:     make(chan struct{}),
		poll:     pollInterval,
	}
}

// State возвращает текущее состояние.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start переводит Idle → Running: снимает базовые гейны и запускает цикл
// оптимизатора. Сессия одноразовая: повторный Start — ошибка.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Idle {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("session: start из состояния %s", st)
	}
	s.state = Running
	s.runCtx = ctx
	s.mu.Unlock()

	s.guard.Capture()
	s.sink.StateChanged(Running, "start")
	go s.run()
	return nil
}

// Pause переводит Running → Paused по действию пользователя. Цикл
// приостановится перед следующим испытанием; тогда же восстановятся
// базовые гейны.
func (s *Session) Pause() {
	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return
	}
	s.state = Paused
	s.pendingRestore = true
	s.mu.Unlock()
	s.sink.StateChanged(Paused, "pause")
}

// Resume переводит Paused → Running; прерванный кандидат будет повторён,
// а не пропущен.
func (s *Session) Resume() {
	s.mu.Lock()
	if s.state != Paused {
		s.mu.Unlock()
		return
	}
	s.state = Running
	s.mu.Unlock()
	s.sink.StateChanged(Running, "resume")
}

// Stop переводит Running|Paused → Stopped. Кооперативно: цикл выйдет в
// ближайшей точке приостановки, испытание в полёте дорешается или истечёт.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state != Running && s.state != Paused {
		s.mu.Unlock()
		return
	}
	s.state = Stopped
	s.mu.Unlock()
	s.sink.StateChanged(Stopped, "stop")
}

// Wait блокируется до конца сессии и возвращает лучшего кандидата.
// ErrStopped означает останов пользователем, не сбой.
func (s *Session) Wait() (optimize.Candidate, error) {
	<-s.done
	return s.best, s.runErr
}

func (s *Session) run() {
	best, err := s.strategy.Run(&plant{s: s}, s.sink)
	// единственная точка восстановления на выходе: естественное завершение,
	// останов и сессионная ошибка оставляют объект на базовых гейнах
	if rerr := s.guard.Restore(); rerr != nil {
		logger.Error("session: восстановление базовых гейнов: %v", rerr)
		if err == nil {
			err = rerr
		}
	}
	s.mu.Lock()
	s.state = Stopped
	s.best = best
	s.runErr = err
	s.mu.Unlock()
	s.sink.Done(best, err)
	close(s.done)
}

// gate — точка приостановки перед каждым испытанием: ждёт в паузе,
// выполняет отложенное восстановление, возвращает ErrStopped при останове.
func (s *Session) gate() error {
	for {
		select {
		case <-s.runCtx.Done():
			s.mu.Lock()
			s.state = Stopped
			s.mu.Unlock()
			return optimize.ErrStopped
		default:
		}

		s.mu.Lock()
		st := s.state
		restore := false
		if st == Paused && s.pendingRestore {
			s.pendingRestore = false
			restore = true
		}
		s.mu.Unlock()

		switch st {
		case Stopped:
			return optimize.ErrStopped
		case Paused:
			if restore {
				if err := s.guard.Restore(); err != nil {
					logger.Error("session: восстановление при паузе: %v", err)
				}
			}
			select {
			case <-s.runCtx.Done():
			case <-time.After(s.poll):
			}
		default:
			return nil
		}
	}
}

// emergency — аварийное прерывание испытания: автопауза, немедленное
// восстановление базовых гейнов, ожидание явного Resume.
func (s *Session) emergency(g optimize.Gains) {
	s.sink.TrialFailed(g, "emergency_interrupt")
	s.mu.Lock()
	if s.state == Running {
		s.state = Paused
	}
	s.pendingRestore = false
	s.mu.Unlock()
	if err := s.guard.Restore(); err != nil {
		logger.Error("session: восстановление после прерывания: %v", err)
	}
	s.sink.StateChanged(Paused, "emergency_interrupt")
}

// plant реализует optimize.Plant поверх harness: пауза/останов и повтор
// после аварийного прерывания скрыты от стратегии. Повтор не продвигает
// индекс кандидата — Measure не возвращается, пока не получит настоящий
// исход или останов; одновременно в полёте всегда одно испытание.
type plant struct {
	s *Session
}

// Measure выполняет манёвр метрик; локальные отказы дают +Inf, аварийное
// прерывание — паузу сессии и повтор того же кандидата после Resume.
func (p *plant) Measure(g optimize.Gains) (float64, error) {
	s := p.s
	for {
		if err := s.gate(); err != nil {
			return 0, err
		}
		out, err := s.harness.RunMetrics(s.runCtx, g.Kp, g.Ki, g.Kd)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return 0, optimize.ErrStopped
			}
			return 0, fmt.Errorf("session: испытание: %w", err)
		}
		switch out.Status {
		case harness.StatusOK:
			return optimize.Fitness(out.ITAE, out.Overshoot, out.SteadyStateError), nil
		case harness.StatusEmergencyInterrupt:
			s.emergency(g)
			continue
		default:
			s.sink.TrialFailed(g, failReason(out))
			return math.Inf(1), nil
		}
	}
}

// Relay выполняет релейное испытание. Таймаут не фатален: собранные отсчёты
// возвращаются, о достаточности циклов судит стратегия.
func (p *plant) Relay(amplitude float64) ([]optimize.RelayPoint, error) {
	s := p.s
	for {
		if err := s.gate(); err != nil {
			return nil, err
		}
		out, err := s.harness.RunRelay(s.runCtx, amplitude)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, optimize.ErrStopped
			}
			return nil, fmt.Errorf("session: релейное испытание: %w", err)
		}
		switch out.Status {
		case harness.StatusOK, harness.StatusTimeout:
			if out.Status == harness.StatusTimeout {
				s.sink.TrialFailed(optimize.Gains{}, "timeout")
			}
			pts := make([]optimize.RelayPoint, len(out.Relay))
			for i, r := range out.Relay {
				pts[i] = optimize.RelayPoint{T: r.T, Angle: r.Angle}
			}
			return pts, nil
		case harness.StatusEmergencyInterrupt:
			s.emergency(optimize.Gains{})
			continue
		default:
			s.sink.TrialFailed(optimize.Gains{}, failReason(out))
			return nil, fmt.Errorf("session: релейное испытание отклонено: %s", failReason(out))
		}
	}
}

func failReason(out harness.Outcome) string {
	if out.Reason != "" {
		return out.Status.String() + ": " + out.Reason
	}
	return out.Status.String()
}

// LogSink — приёмник по умолчанию: пишет ход поиска в лог.
type LogSink struct{}

func (LogSink) Evaluated(c optimize.Candidate) {
	logger.Info("оценка kp=%.4g ki=%.4g kd=%.4g → fitness %.6g", c.Kp, c.Ki, c.Kd, c.Fitness)
}

func (LogSink) Progress(best optimize.Candidate, iter, total int) {
	logger.Info("итерация %d/%d, лучший fitness %.6g (kp=%.4g ki=%.4g kd=%.4g)",
		iter, total, best.Fitness, best.Kp, best.Ki, best.Kd)
}

func (LogSink) TrialFailed(g optimize.Gains, reason string) {
	logger.Info("испытание не засчитано (%s): kp=%.4g ki=%.4g kd=%.4g", reason, g.Kp, g.Ki, g.Kd)
}

func (LogSink) StateChanged(s State, cause string) {
	logger.Info("сессия: %s (%s)", s, cause)
}

func (LogSink) Done(best optimize.Candidate, err error) {
	if err != nil && !errors.Is(err, optimize.ErrStopped) {
		logger.Error("сессия завершилась с ошибкой: %v", err)
		return
	}
	logger.Info("сессия завершена: лучший fitness %.6g (kp=%.4g ki=%.4g kd=%.4g)",
		best.Fitness, best.Kp, best.Ki, best.Kd)
}
