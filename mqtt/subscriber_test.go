package mqtt

import (
	"errors"
	"testing"

	"go.uber.org/zap"

	"track-tamper-detector/models"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

type fakeSink struct {
	readings []models.SensorReading
}

func (f *fakeSink) ProcessReading(r models.SensorReading) bool {
	f.readings = append(f.readings, r)
	return true
}

func TestDecodeReading(t *testing.T) {
	tests := []struct {
		name     string
		topic    string
		payload  string
		wantNode string
		wantVal  float64
		wantErr  bool
	}{
		{name: "full payload", topic: "railway/sensor/TRACK_SEC_42", payload: `{"node_id":"TRACK_SEC_42","vibration_val":1.5}`, wantNode: "TRACK_SEC_42", wantVal: 1.5},
		{name: "node from topic", topic: "railway/sensor/TRACK_SEC_43", payload: `{"vibration_val":7}`, wantNode: "TRACK_SEC_43", wantVal: 7},
		{name: "payload node wins", topic: "railway/sensor/X", payload: `{"node_id":"Y","vibration_val":0}`, wantNode: "Y", wantVal: 0},
		{name: "missing value", topic: "railway/sensor/X", payload: `{"node_id":"X"}`, wantErr: true},
		{name: "not json", topic: "railway/sensor/X", payload: `vibration=3`, wantErr: true},
		{name: "no node anywhere", topic: "railway/sensor/", payload: `{"vibration_val":1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeReading(tt.topic, []byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeReading() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.NodeID != tt.wantNode || *got.VibrationVal != tt.wantVal {
				t.Errorf("decodeReading() = %s/%v, want %s/%v", got.NodeID, *got.VibrationVal, tt.wantNode, tt.wantVal)
			}
		})
	}
}

func TestDecodeReading_ValidationError(t *testing.T) {
	_, err := decodeReading("railway/sensor/X", []byte(`{"node_id":"X"}`))
	if !errors.Is(err, models.ErrInvalidReading) {
		t.Errorf("decodeReading() error = %v, want ErrInvalidReading", err)
	}
}

func TestHandleMessage(t *testing.T) {
	sink := &fakeSink{}
	s := NewSubscriber(DefaultConfig(), sink, zap.NewNop())

	s.handleMessage(nil, &fakeMessage{topic: "railway/sensor/TRACK_SEC_42", payload: []byte(`{"vibration_val":0.4}`)})
	s.handleMessage(nil, &fakeMessage{topic: "railway/sensor/TRACK_SEC_42", payload: []byte(`garbage`)})

	if len(sink.readings) != 1 {
		t.Fatalf("sink received %d readings, want 1", len(sink.readings))
	}
	if sink.readings[0].NodeID != "TRACK_SEC_42" {
		t.Errorf("NodeID = %q, want TRACK_SEC_42", sink.readings[0].NodeID)
	}
}

func TestSubscriber_DisabledWithoutBroker(t *testing.T) {
	s := NewSubscriber(DefaultConfig(), &fakeSink{}, zap.NewNop())
	if s.Enabled() {
		t.Error("Enabled() = true with empty broker url")
	}
	s.Start()
	s.Stop()
}
