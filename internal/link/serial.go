package link

import (
	"bufio"
	"fmt"
	"sync"

	"github.com/tarm/serial"

	"github.com/balansir/pidtune/internal/logger"
	"github.com/balansir/pidtune/internal/wire"
)

// SerialLink — робот на последовательном порту (USB). Кадр — строка JSON с '\n'.
type SerialLink struct {
	port   *serial.Port
	events chan wire.Event

	mu     sync.Mutex // сериализует Write
	closed bool
}

// OpenSerial открывает последовательный порт и запускает чтение событий.
func OpenSerial(device string, baud int) (*SerialLink, error) {
	if baud == 0 {
		baud = 115200
	}
	p, err := serial.OpenPort(&serial.Config{Name: device, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("serial open %s: %w", device, err)
	}
	l := &SerialLink{
		port:   p,
		events: make(chan wire.Event, eventBuffer),
	}
	go l.readLoop()
	return l, nil
}

// Send сериализует команду и отправляет строкой.
func (l *SerialLink) Send(cmd interface{}) error {
	data, err := wire.Marshal(cmd)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return fmt.Errorf("serial send: порт закрыт")
	}
	if _, err := l.port.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("serial send: %w", err)
	}
	return nil
}

// Events возвращает канал входящих событий.
func (l *SerialLink) Events() <-chan wire.Event {
	return l.events
}

// readLoop читает строки до ошибки порта; мусорные строки пропускаются
// (на линии бывают обрывки после переподключения).
func (l *SerialLink) readLoop() {
	defer close(l.events)
	sc := bufio.NewScanner(l.port)
	sc.Buffer(make([]byte, 0, 4096), 64*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		ev, err := wire.ParseEvent(line)
		if err != nil {
			logger.Info("serial: пропуск строки: %v", err)
			continue
		}
		l.events <- ev
	}
	if err := sc.Err(); err != nil {
		l.mu.Lock()
		closed := l.closed
		l.mu.Unlock()
		if !closed {
			logger.Error("serial: чтение: %v", err)
		}
	}
}

// Close закрывает порт; readLoop завершится и закроет канал событий.
func (l *SerialLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.port.Close()
}
