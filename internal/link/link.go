// Package link — транспорт до прошивки робота (фасад линии связи).
// Надёжность и порядок доставки — забота транспорта; ядро тюнера видит только
// отправку команд и канал входящих событий.
package link

import (
	"fmt"

	"github.com/balansir/pidtune/internal/config"
	"github.com/balansir/pidtune/internal/logger"
	"github.com/balansir/pidtune/internal/wire"
)

// Link — соединение с роботом: отправка команд и поток коррелируемых событий.
// Events закрывается при разрыве соединения или Close.
type Link interface {
	Send(cmd interface{}) error
	Events() <-chan wire.Event
	Close() error
}

// буфер канала событий: релейное испытание шлёт плотный поток relay_state
const eventBuffer = 256

// New открывает транспорт по конфигу. При пустом transport пробует по порядку
// serial, затем ws — первый открывшийся выигрывает (как выбор источника
// primary → secondary).
func New(cfg config.DeviceConfig) (Link, error) {
	switch cfg.Transport {
	case "serial":
		return OpenSerial(cfg.Port, cfg.Baud)
	case "ws":
		return DialWS(cfg.URL)
	case "sim":
		return NewSim(cfg.Seed), nil
	case "":
		if l, err := OpenSerial(cfg.Port, cfg.Baud); err == nil {
			logger.Info("link: serial %s", cfg.Port)
			return l, nil
		} else {
			logger.Info("link: serial %s недоступен: %v", cfg.Port, err)
		}
		if l, err := DialWS(cfg.URL); err == nil {
			logger.Info("link: ws %s", cfg.URL)
			return l, nil
		} else {
			logger.Info("link: ws %s недоступен: %v", cfg.URL, err)
		}
		return nil, fmt.Errorf("link: ни один транспорт не открылся (serial %s, ws %s)", cfg.Port, cfg.URL)
	default:
		return nil, fmt.Errorf("link: неизвестный транспорт %q", cfg.Transport)
	}
}
