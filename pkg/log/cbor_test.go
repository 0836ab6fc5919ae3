package log

import (
	"testing"
	"time"
)

func TestEventCBORRoundTrip(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456789, time.UTC)
	original := Event{
		Timestamp:    ts,
		ConnectionID: "uuid:abc12345-def6-7890-abcd-ef1234567890",
		Direction:    DirectionOut,
		Layer:        LayerWire,
		Category:     CategoryMessage,
		LocalRole:    RoleController,
		RemoteAddr:   "192.168.1.100:8058",
		PublisherURL: "http://192.168.1.100:8058/event",
		Handle:       "1",
	}

	data, err := encodeEvent(original)
	if err != nil {
		t.Fatalf("encodeEvent failed: %v", err)
	}

	decoded, err := decodeEvent(data)
	if err != nil {
		t.Fatalf("decodeEvent failed: %v", err)
	}

	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp: got %v, want %v", decoded.Timestamp, original.Timestamp)
	}
	if decoded.ConnectionID != original.ConnectionID {
		t.Errorf("ConnectionID: got %q, want %q", decoded.ConnectionID, original.ConnectionID)
	}
	if decoded.Direction != original.Direction {
		t.Errorf("Direction: got %v, want %v", decoded.Direction, original.Direction)
	}
	if decoded.Layer != original.Layer {
		t.Errorf("Layer: got %v, want %v", decoded.Layer, original.Layer)
	}
	if decoded.Category != original.Category {
		t.Errorf("Category: got %v, want %v", decoded.Category, original.Category)
	}
	if decoded.LocalRole != original.LocalRole {
		t.Errorf("LocalRole: got %v, want %v", decoded.LocalRole, original.LocalRole)
	}
	if decoded.RemoteAddr != original.RemoteAddr {
		t.Errorf("RemoteAddr: got %q, want %q", decoded.RemoteAddr, original.RemoteAddr)
	}
	if decoded.PublisherURL != original.PublisherURL {
		t.Errorf("PublisherURL: got %q, want %q", decoded.PublisherURL, original.PublisherURL)
	}
	if decoded.Handle != original.Handle {
		t.Errorf("Handle: got %q, want %q", decoded.Handle, original.Handle)
	}
}

func TestFrameEventCBORRoundTrip(t *testing.T) {
	original := Event{
		Timestamp:    time.Now(),
		ConnectionID: "uuid:conn-123",
		Direction:    DirectionIn,
		Layer:        LayerTransport,
		Category:     CategoryMessage,
		Frame: &FrameEvent{
			Size:      256,
			Data:      []byte{0x01, 0x02, 0x03, 0x04, 0x05},
			Truncated: true,
		},
	}

	data, err := encodeEvent(original)
	if err != nil {
		t.Fatalf("encodeEvent failed: %v", err)
	}

	decoded, err := decodeEvent(data)
	if err != nil {
		t.Fatalf("decodeEvent failed: %v", err)
	}

	if decoded.Frame == nil {
		t.Fatal("Frame is nil")
	}
	if decoded.Frame.Size != original.Frame.Size {
		t.Errorf("Frame.Size: got %d, want %d", decoded.Frame.Size, original.Frame.Size)
	}
	if string(decoded.Frame.Data) != string(original.Frame.Data) {
		t.Errorf("Frame.Data: got %v, want %v", decoded.Frame.Data, original.Frame.Data)
	}
	if decoded.Frame.Truncated != original.Frame.Truncated {
		t.Errorf("Frame.Truncated: got %v, want %v", decoded.Frame.Truncated, original.Frame.Truncated)
	}
}

func TestMessageEventCBORRoundTrip(t *testing.T) {
	timeout := 1800
	eventKey := 7
	statusCode := 200
	processingTime := 2 * time.Millisecond

	tests := []struct {
		name string
		msg  *MessageEvent
	}{
		{
			name: "subscribe request",
			msg: &MessageEvent{
				Type:    MessageTypeRequest,
				Method:  "SUBSCRIBE",
				Sid:     "uuid:sub-1",
				Timeout: &timeout,
			},
		},
		{
			name: "subscribe response",
			msg: &MessageEvent{
				Type:           MessageTypeResponse,
				StatusCode:     &statusCode,
				ProcessingTime: &processingTime,
			},
		},
		{
			name: "notify",
			msg: &MessageEvent{
				Type:     MessageTypeNotification,
				Method:   "NOTIFY",
				Sid:      "uuid:sub-1",
				EventKey: &eventKey,
				Payload:  map[string]any{"Status": "on"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := Event{
				Timestamp:    time.Now(),
				ConnectionID: "uuid:conn-123",
				Direction:    DirectionOut,
				Layer:        LayerWire,
				Category:     CategoryMessage,
				Message:      tt.msg,
			}

			data, err := encodeEvent(original)
			if err != nil {
				t.Fatalf("encodeEvent failed: %v", err)
			}

			decoded, err := decodeEvent(data)
			if err != nil {
				t.Fatalf("decodeEvent failed: %v", err)
			}

			if decoded.Message == nil {
				t.Fatal("Message is nil")
			}
			if decoded.Message.Type != tt.msg.Type {
				t.Errorf("Message.Type: got %v, want %v", decoded.Message.Type, tt.msg.Type)
			}
			if decoded.Message.Method != tt.msg.Method {
				t.Errorf("Message.Method: got %q, want %q", decoded.Message.Method, tt.msg.Method)
			}
			if decoded.Message.Sid != tt.msg.Sid {
				t.Errorf("Message.Sid: got %q, want %q", decoded.Message.Sid, tt.msg.Sid)
			}
		})
	}
}

func TestStateChangeEventCBORRoundTrip(t *testing.T) {
	original := Event{
		Timestamp:    time.Now(),
		ConnectionID: "uuid:conn-123",
		Direction:    DirectionIn,
		Layer:        LayerService,
		Category:     CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   StateEntitySubscription,
			OldState: "",
			NewState: "ACTIVE",
			Reason:   "initial subscribe accepted",
		},
	}

	data, err := encodeEvent(original)
	if err != nil {
		t.Fatalf("encodeEvent failed: %v", err)
	}

	decoded, err := decodeEvent(data)
	if err != nil {
		t.Fatalf("decodeEvent failed: %v", err)
	}

	if decoded.StateChange == nil {
		t.Fatal("StateChange is nil")
	}
	if decoded.StateChange.Entity != original.StateChange.Entity {
		t.Errorf("StateChange.Entity: got %v, want %v", decoded.StateChange.Entity, original.StateChange.Entity)
	}
	if decoded.StateChange.OldState != original.StateChange.OldState {
		t.Errorf("StateChange.OldState: got %q, want %q", decoded.StateChange.OldState, original.StateChange.OldState)
	}
	if decoded.StateChange.NewState != original.StateChange.NewState {
		t.Errorf("StateChange.NewState: got %q, want %q", decoded.StateChange.NewState, original.StateChange.NewState)
	}
	if decoded.StateChange.Reason != original.StateChange.Reason {
		t.Errorf("StateChange.Reason: got %q, want %q", decoded.StateChange.Reason, original.StateChange.Reason)
	}
}

func TestErrorEventCBORRoundTrip(t *testing.T) {
	code := 412

	original := Event{
		Timestamp:    time.Now(),
		ConnectionID: "uuid:conn-123",
		Direction:    DirectionIn,
		Layer:        LayerWire,
		Category:     CategoryError,
		Error: &ErrorEventData{
			Layer:   LayerWire,
			Message: "missing SID header",
			Code:    &code,
			Context: "NOTIFY",
		},
	}

	data, err := encodeEvent(original)
	if err != nil {
		t.Fatalf("encodeEvent failed: %v", err)
	}

	decoded, err := decodeEvent(data)
	if err != nil {
		t.Fatalf("decodeEvent failed: %v", err)
	}

	if decoded.Error == nil {
		t.Fatal("Error is nil")
	}
	if decoded.Error.Layer != original.Error.Layer {
		t.Errorf("Error.Layer: got %v, want %v", decoded.Error.Layer, original.Error.Layer)
	}
	if decoded.Error.Message != original.Error.Message {
		t.Errorf("Error.Message: got %q, want %q", decoded.Error.Message, original.Error.Message)
	}
	if decoded.Error.Code == nil || *decoded.Error.Code != *original.Error.Code {
		t.Errorf("Error.Code: got %v, want %v", decoded.Error.Code, original.Error.Code)
	}
	if decoded.Error.Context != original.Error.Context {
		t.Errorf("Error.Context: got %q, want %q", decoded.Error.Context, original.Error.Context)
	}
}

func TestEventCBORUsesIntegerKeys(t *testing.T) {
	event := Event{
		Timestamp:    time.Now(),
		ConnectionID: "uuid:conn-123",
		Direction:    DirectionIn,
		Layer:        LayerTransport,
		Category:     CategoryMessage,
	}

	data, err := encodeEvent(event)
	if err != nil {
		t.Fatalf("encodeEvent failed: %v", err)
	}

	var rawMap map[uint64]any
	if err := glogDecMode.Unmarshal(data, &rawMap); err != nil {
		t.Fatalf("failed to decode as map: %v", err)
	}

	expectedKeys := []uint64{1, 2, 3, 4, 5}
	for _, key := range expectedKeys {
		if _, ok := rawMap[key]; !ok {
			t.Errorf("expected integer key %d not found in encoded data", key)
		}
	}

	var stringMap map[string]any
	if err := glogDecMode.Unmarshal(data, &stringMap); err == nil && len(stringMap) > 0 {
		t.Error("encoded data contains string keys, expected integer keys only")
	}
}
