package wire

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseEvent(t *testing.T) {
	t.Run("ack failure", func(t *testing.T) {
		ev, err := ParseEvent([]byte(`{"type":"ack","command":"run_metrics_test","success":false,"message":"busy"}`))
		if err != nil {
			t.Fatalf("ParseEvent: %v", err)
		}
		if ev.Type != EvAck || ev.Succeeded() {
			t.Errorf("ожидали неуспешный ack, получили %+v", ev)
		}
		if ev.Message != "busy" {
			t.Errorf("message: получили %q", ev.Message)
		}
	})

	t.Run("metrics result", func(t *testing.T) {
		ev, err := ParseEvent([]byte(`{"type":"metrics_result","test_id":"7-ab","itae":1.5,"overshoot":0.12,"steady_state_error":0.01}`))
		if err != nil {
			t.Fatalf("ParseEvent: %v", err)
		}
		if !ev.IsMetrics() {
			t.Error("metrics_result должен давать IsMetrics")
		}
		if ev.ITAE != 1.5 || ev.Overshoot != 0.12 || ev.SteadyStateError != 0.01 {
			t.Errorf("метрики: %+v", ev)
		}
	})

	t.Run("test_result legacy alias", func(t *testing.T) {
		ev, err := ParseEvent([]byte(`{"type":"test_result","test_id":"7-ab","itae":2}`))
		if err != nil {
			t.Fatalf("ParseEvent: %v", err)
		}
		if !ev.IsMetrics() {
			t.Error("test_result должен давать IsMetrics")
		}
	})

	t.Run("test_complete emergency", func(t *testing.T) {
		ev, err := ParseEvent([]byte(`{"type":"test_complete","test_id":"3-cd","success":false,"reason":"emergency_interrupt"}`))
		if err != nil {
			t.Fatalf("ParseEvent: %v", err)
		}
		if ev.Succeeded() {
			t.Error("success=false должен давать Succeeded()==false")
		}
		if ev.Reason != ReasonEmergencyInterrupt {
			t.Errorf("reason: %q", ev.Reason)
		}
	})

	t.Run("missing success field", func(t *testing.T) {
		ev, err := ParseEvent([]byte(`{"type":"status_update","test_id":"1-x","message":"test_started"}`))
		if err != nil {
			t.Fatalf("ParseEvent: %v", err)
		}
		if ev.Success != nil {
			t.Error("отсутствующее поле success должно остаться nil")
		}
		if ev.Succeeded() {
			t.Error("Succeeded без поля success должен быть false")
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		if _, err := ParseEvent([]byte(`{"type":"telemetry"}`)); err == nil {
			t.Error("ожидали ошибку на неизвестный type")
		}
	})

	t.Run("empty type", func(t *testing.T) {
		if _, err := ParseEvent([]byte(`{"itae":1}`)); err == nil {
			t.Error("ожидали ошибку на пустой type")
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, err := ParseEvent([]byte(`{{{`)); err == nil {
			t.Error("ожидали ошибку на битый JSON")
		}
	})
}

func TestMarshalCommands(t *testing.T) {
	t.Run("run_metrics_test keeps zero gains", func(t *testing.T) {
		data, err := Marshal(NewRunMetricsTest(0, 0, 0.5, "2-ab"))
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		var m map[string]interface{}
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("unmarshal back: %v", err)
		}
		// нулевой гейн — легальное значение и обязан уйти на линию
		for _, k := range []string{"cmd", "kp", "ki", "kd", "test_id"} {
			if _, ok := m[k]; !ok {
				t.Errorf("в run_metrics_test нет поля %q: %s", k, data)
			}
		}
		if m["cmd"] != CmdRunMetricsTest {
			t.Errorf("cmd: %v", m["cmd"])
		}
	})

	t.Run("run_relay_test", func(t *testing.T) {
		data, err := Marshal(NewRunRelayTest(0.5, "4-ab"))
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		s := string(data)
		if !strings.Contains(s, `"cmd":"run_relay_test"`) || !strings.Contains(s, `"test_id":"4-ab"`) {
			t.Errorf("run_relay_test: %s", s)
		}
	})

	t.Run("set_param", func(t *testing.T) {
		data, err := Marshal(NewSetParam("balance.kp", 12.5))
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		s := string(data)
		if !strings.Contains(s, `"key":"balance.kp"`) || !strings.Contains(s, `"value":12.5`) {
			t.Errorf("set_param: %s", s)
		}
	})

	t.Run("cancel_test", func(t *testing.T) {
		data, err := Marshal(NewCancelTest())
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if string(data) != `{"cmd":"cancel_test"}` {
			t.Errorf("cancel_test: %s", data)
		}
	})
}
