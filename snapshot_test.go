package tripwire

import (
	"encoding/json"
	"testing"
)

func TestNewSnapshot_AllDefaults(t *testing.T) {
	s := NewSnapshot()

	for _, c := range Channels() {
		if s.Value(c) != Default(c) {
			t.Errorf("%s: expected default %v, got %v", c, Default(c), s.Value(c))
		}
		if s.Timestamp(c) != "" {
			t.Errorf("%s: expected empty timestamp, got %q", c, s.Timestamp(c))
		}
	}
}

func TestSnapshot_MarshalJSON(t *testing.T) {
	s := NewSnapshot().
		with(ChannelPIR, BoolValue(true), "2024-01-01T00:00:00Z").
		with(ChannelUltrasonic, NumberValue(42), "2024-01-01T00:00:01.000Z")

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	want := `{"pir":true,"camera":false,"buzzer":false,"led":false,"ultrasonic":42,` +
		`"timestamps":{"pir":"2024-01-01T00:00:00Z","camera":"","buzzer":"","led":"","ultrasonic":"2024-01-01T00:00:01.000Z"}}`
	if string(data) != want {
		t.Errorf("expected %s, got %s", want, data)
	}
}

func TestSnapshot_WithEmptyTimestampKeepsPrevious(t *testing.T) {
	s := NewSnapshot().with(ChannelLED, BoolValue(true), "2024-01-01T00:00:00Z")
	s = s.with(ChannelLED, BoolValue(false), "")

	if s.Bool(ChannelLED) {
		t.Error("expected led false")
	}
	if s.Timestamp(ChannelLED) != "2024-01-01T00:00:00Z" {
		t.Errorf("expected timestamp kept, got %q", s.Timestamp(ChannelLED))
	}
}

func TestSnapshot_IsAValue(t *testing.T) {
	a := NewSnapshot()
	b := a.with(ChannelCamera, BoolValue(true), "2024-01-01T00:00:00Z")

	if a.Bool(ChannelCamera) {
		t.Error("with mutated the receiver")
	}
	if a == b {
		t.Error("expected snapshots to differ")
	}
}

func TestSnapshot_UnknownChannel(t *testing.T) {
	s := NewSnapshot()
	if s.Value(Channel("door")) != (Value{}) {
		t.Error("expected zero value for unknown channel")
	}
	if s.Timestamp(Channel("door")) != "" {
		t.Error("expected empty timestamp for unknown channel")
	}
	if s.with(Channel("door"), BoolValue(true), "x") != s {
		t.Error("expected unknown channel to leave snapshot unchanged")
	}
}

func TestChannels_Order(t *testing.T) {
	want := []Channel{ChannelPIR, ChannelCamera, ChannelBuzzer, ChannelLED, ChannelUltrasonic}
	got := Channels()
	if len(got) != len(want) {
		t.Fatalf("expected %d channels, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	got[0] = "mutated"
	if Channels()[0] != ChannelPIR {
		t.Error("Channels returned shared backing storage")
	}
}

func TestChannel_Kind(t *testing.T) {
	for _, c := range []Channel{ChannelPIR, ChannelCamera, ChannelBuzzer, ChannelLED} {
		if c.Kind() != KindBool {
			t.Errorf("%s: expected bool, got %s", c, c.Kind())
		}
	}
	if ChannelUltrasonic.Kind() != KindNumber {
		t.Errorf("ultrasonic: expected number, got %s", ChannelUltrasonic.Kind())
	}
}

func TestParseChannel(t *testing.T) {
	if c, ok := ParseChannel("led"); !ok || c != ChannelLED {
		t.Errorf("expected led, got %q (ok=%v)", c, ok)
	}
	if _, ok := ParseChannel("timestamp"); ok {
		t.Error("expected timestamp not to be a channel")
	}
	if Channel("door").Valid() {
		t.Error("expected door to be invalid")
	}
}

func TestValue_String(t *testing.T) {
	if got := BoolValue(true).String(); got != "true" {
		t.Errorf("expected true, got %s", got)
	}
	if got := NumberValue(42).String(); got != "42" {
		t.Errorf("expected 42, got %s", got)
	}
	if got := NumberValue(3.25).String(); got != "3.25" {
		t.Errorf("expected 3.25, got %s", got)
	}
}

func TestSnapshot_WithRejectsKindMismatch(t *testing.T) {
	s := NewSnapshot()
	if s.With(ChannelPIR, NumberValue(1), "2024-01-01T00:00:00Z") != s {
		t.Error("expected number on a bool channel to be ignored")
	}
	got := s.With(ChannelUltrasonic, NumberValue(9), "2024-01-01T00:00:00Z")
	if got.Number(ChannelUltrasonic) != 9 {
		t.Errorf("expected ultrasonic 9, got %v", got.Number(ChannelUltrasonic))
	}
}
