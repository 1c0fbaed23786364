package link

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/balansir/pidtune/internal/logger"
	"github.com/balansir/pidtune/internal/wire"
)

const wsDialTimeout = 5 * time.Second

// WSLink — робот по WiFi: websocket с JSON-сообщениями.
type WSLink struct {
	conn   *websocket.Conn
	events chan wire.Event

	mu     sync.Mutex // сериализует WriteJSON
	closed bool
}

// DialWS подключается к websocket прошивки и запускает чтение событий.
func DialWS(url string) (*WSLink, error) {
	if url == "" {
		return nil, fmt.Errorf("ws dial: пустой url")
	}
	dialer := websocket.Dialer{HandshakeTimeout: wsDialTimeout}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws dial %s: %w", url, err)
	}
	l := &WSLink{
		conn:   conn,
		events: make(chan wire.Event, eventBuffer),
	}
	go l.readLoop()
	return l, nil
}

// Send отправляет команду одним JSON-сообщением.
func (l *WSLink) Send(cmd interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return fmt.Errorf("ws send: соединение закрыто")
	}
	if err := l.conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("ws send: %w", err)
	}
	return nil
}

// Events возвращает канал входящих событий.
func (l *WSLink) Events() <-chan wire.Event {
	return l.events
}

func (l *WSLink) readLoop() {
	defer close(l.events)
	for {
		_, data, err := l.conn.ReadMessage()
		if err != nil {
			l.mu.Lock()
			closed := l.closed
			l.mu.Unlock()
			if !closed {
				logger.Error("ws: чтение: %v", err)
			}
			return
		}
		ev, perr := wire.ParseEvent(data)
		if perr != nil {
			logger.Info("ws: пропуск сообщения: %v", perr)
			continue
		}
		l.events <- ev
	}
}

// Close закрывает соединение; readLoop завершится и закроет канал событий.
func (l *WSLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.conn.Close()
}
