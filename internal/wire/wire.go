// Package wire — протокол обмена с прошивкой робота: команды и события в JSON.
// Кодировка на линии — забота транспорта (link): serial шлёт строки с '\n',
// websocket — отдельные текстовые кадры. Логические поля сообщений фиксированы
// контрактом прошивки.
package wire

import (
	"encoding/json"
	"fmt"
)

// Команды к прошивке (поле "cmd")
const (
	CmdRunMetricsTest = "run_metrics_test"
	CmdRunRelayTest   = "run_relay_test"
	CmdCancelTest     = "cancel_test"
	CmdSetParam       = "set_param"
)

// События от прошивки (поле "type")
const (
	EvAck           = "ack"
	EvStatusUpdate  = "status_update"
	EvMetricsResult = "metrics_result"
	EvTestResult    = "test_result" // синоним metrics_result в старых прошивках
	EvRelayState    = "relay_state"
	EvTestComplete  = "test_complete"
)

// Причина аварийного прерывания испытания в test_complete.reason
const ReasonEmergencyInterrupt = "emergency_interrupt"

// RunMetricsTest — запуск манёвра с заданными гейнами и оценкой метрик.
type RunMetricsTest struct {
	Cmd    string  `json:"cmd"`
	Kp     float64 `json:"kp"`
	Ki     float64 `json:"ki"`
	Kd     float64 `json:"kd"`
	TestID string  `json:"test_id"`
}

// NewRunMetricsTest собирает команду run_metrics_test.
func NewRunMetricsTest(kp, ki, kd float64, testID string) RunMetricsTest {
	return RunMetricsTest{Cmd: CmdRunMetricsTest, Kp: kp, Ki: ki, Kd: kd, TestID: testID}
}

// RunRelayTest — запуск релейного (bang-bang) испытания заданной амплитуды.
type RunRelayTest struct {
	Cmd       string  `json:"cmd"`
	Amplitude float64 `json:"amplitude"`
	TestID    string  `json:"test_id"`
}

// NewRunRelayTest собирает команду run_relay_test.
func NewRunRelayTest(amplitude float64, testID string) RunRelayTest {
	return RunRelayTest{Cmd: CmdRunRelayTest, Amplitude: amplitude, TestID: testID}
}

// CancelTest — отмена текущего испытания на прошивке.
type CancelTest struct {
	Cmd string `json:"cmd"`
}

// NewCancelTest собирает команду cancel_test.
func NewCancelTest() CancelTest {
	return CancelTest{Cmd: CmdCancelTest}
}

// SetParam — запись одного параметра контура (например "balance.kp").
type SetParam struct {
	Cmd   string  `json:"cmd"`
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// NewSetParam собирает команду set_param.
func NewSetParam(key string, value float64) SetParam {
	return SetParam{Cmd: CmdSetParam, Key: key, Value: value}
}

// Event — входящее событие от прошивки. Одна структура на все типы:
// лишние поля конкретного типа остаются нулевыми.
type Event struct {
	Type    string `json:"type"`
	Command string `json:"command,omitempty"`
	// Success — указатель, чтобы отличать отсутствие поля от явного false.
	Success *bool  `json:"success,omitempty"`
	TestID  string `json:"test_id,omitempty"`
	Message string `json:"message,omitempty"`
	Reason  string `json:"reason,omitempty"`

	// metrics_result / test_result
	ITAE             float64 `json:"itae,omitempty"`
	Overshoot        float64 `json:"overshoot,omitempty"`
	SteadyStateError float64 `json:"steady_state_error,omitempty"`

	// relay_state
	Time        float64 `json:"time,omitempty"`
	Angle       float64 `json:"angle,omitempty"`
	RelayOutput float64 `json:"relay_output,omitempty"`
}

// IsMetrics возвращает true для событий с метриками испытания
// (metrics_result и его устаревший синоним test_result).
func (e Event) IsMetrics() bool {
	return e.Type == EvMetricsResult || e.Type == EvTestResult
}

// Succeeded возвращает значение success (false, если поле отсутствует).
func (e Event) Succeeded() bool {
	return e.Success != nil && *e.Success
}

// ParseEvent разбирает одно событие из JSON и проверяет, что тип известен.
func ParseEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("wire parse: %w", err)
	}
	switch e.Type {
	case EvAck, EvStatusUpdate, EvMetricsResult, EvTestResult, EvRelayState, EvTestComplete:
		return e, nil
	case "":
		return Event{}, fmt.Errorf("wire parse: пустой type")
	default:
		return Event{}, fmt.Errorf("wire parse: неизвестный type %q", e.Type)
	}
}

// Marshal сериализует команду в JSON (без завершающего перевода строки).
func Marshal(cmd interface{}) ([]byte, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("wire marshal: %w", err)
	}
	return data, nil
}
