package protolog

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func logOne(t *testing.T, level slog.Level, event Event) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: level})
	NewSlogAdapter(slog.New(handler)).Log(event)

	if buf.Len() == 0 {
		return nil
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	return entry
}

func TestSlogAdapterLogsMessageEvent(t *testing.T) {
	entry := logOne(t, slog.LevelDebug, Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Direction:    DirectionIn,
		Layer:        LayerWire,
		Category:     CategoryMessage,
		Epoch:        2,
		Message:      &MessageEvent{App: "music", Type: "song", Listeners: 3},
	})

	if entry == nil {
		t.Fatal("no output produced")
	}
	if entry["msg"] != "protocol" {
		t.Errorf("msg: got %v, want protocol", entry["msg"])
	}
	if entry["conn_id"] != "conn-123" {
		t.Errorf("conn_id: got %v", entry["conn_id"])
	}
	if entry["direction"] != "IN" {
		t.Errorf("direction: got %v", entry["direction"])
	}
	if entry["app"] != "music" || entry["msg_type"] != "song" {
		t.Errorf("app/msg_type: got %v/%v", entry["app"], entry["msg_type"])
	}
	if entry["listeners"] != float64(3) {
		t.Errorf("listeners: got %v", entry["listeners"])
	}
	if entry["epoch"] != float64(2) {
		t.Errorf("epoch: got %v", entry["epoch"])
	}
}

func TestSlogAdapterLogsStateChange(t *testing.T) {
	entry := logOne(t, slog.LevelDebug, Event{
		Timestamp: time.Now(),
		Layer:     LayerClient,
		Category:  CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   StateEntityConnection,
			OldState: "CONNECTED",
			NewState: "RECONNECT_PENDING",
			Reason:   "heartbeat timeout",
		},
	})

	if entry["entity"] != "CONNECTION" {
		t.Errorf("entity: got %v", entry["entity"])
	}
	if entry["new_state"] != "RECONNECT_PENDING" {
		t.Errorf("new_state: got %v", entry["new_state"])
	}
	if entry["reason"] != "heartbeat timeout" {
		t.Errorf("reason: got %v", entry["reason"])
	}
}

func TestSlogAdapterLogsControlAndError(t *testing.T) {
	entry := logOne(t, slog.LevelDebug, Event{
		Category:   CategoryControl,
		ControlMsg: &ControlMsgEvent{Type: ControlMsgProbeResponse},
	})
	if entry["ctrl_type"] != "PROBE_RESPONSE" {
		t.Errorf("ctrl_type: got %v", entry["ctrl_type"])
	}

	entry = logOne(t, slog.LevelDebug, Event{
		Category: CategoryError,
		Error:    &ErrorEventData{Layer: LayerWire, Message: "malformed envelope", Context: "decode"},
	})
	if entry["error_layer"] != "WIRE" || entry["error_msg"] != "malformed envelope" {
		t.Errorf("error attrs: got %v/%v", entry["error_layer"], entry["error_msg"])
	}
}

func TestSlogAdapterSkipsWhenDebugDisabled(t *testing.T) {
	entry := logOne(t, slog.LevelInfo, Event{Category: CategoryState, StateChange: &StateChangeEvent{NewState: "CONNECTED"}})
	if entry != nil {
		t.Errorf("expected no output at info level, got %v", entry)
	}
}
