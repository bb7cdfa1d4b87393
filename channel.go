package tripwire

import (
	"encoding/json"
	"strconv"
)

// Channel identifies one of the fixed sensor signals tracked by the engine.
type Channel string

// The closed set of channels. Identity and value kind never change.
const (
	ChannelPIR        Channel = "pir"
	ChannelCamera     Channel = "camera"
	ChannelBuzzer     Channel = "buzzer"
	ChannelLED        Channel = "led"
	ChannelUltrasonic Channel = "ultrasonic"
)

// numChannels is the size of the closed channel set.
const numChannels = 5

var channelOrder = [numChannels]Channel{
	ChannelPIR,
	ChannelCamera,
	ChannelBuzzer,
	ChannelLED,
	ChannelUltrasonic,
}

// Channels returns every channel in display order.
func Channels() []Channel {
	out := make([]Channel, numChannels)
	copy(out, channelOrder[:])
	return out
}

// ParseChannel maps a wire key to its Channel.
func ParseChannel(s string) (Channel, bool) {
	c := Channel(s)
	return c, c.index() >= 0
}

// Valid reports whether c belongs to the closed channel set.
func (c Channel) Valid() bool {
	return c.index() >= 0
}

// Kind returns the value kind carried by the channel.
func (c Channel) Kind() Kind {
	if c == ChannelUltrasonic {
		return KindNumber
	}
	return KindBool
}

// String returns the wire key.
func (c Channel) String() string {
	return string(c)
}

func (c Channel) index() int {
	for i, ch := range channelOrder {
		if ch == c {
			return i
		}
	}
	return -1
}

// Kind is the value type of a channel.
type Kind int

const (
	// KindBool channels carry on/off state.
	KindBool Kind = iota
	// KindNumber channels carry a numeric reading.
	KindNumber
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	default:
		return "unknown"
	}
}

// Value is a single channel reading. Values are comparable with ==.
type Value struct {
	kind Kind
	b    bool
	n    float64
}

// BoolValue wraps a boolean reading.
func BoolValue(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// NumberValue wraps a numeric reading.
func NumberValue(n float64) Value {
	return Value{kind: KindNumber, n: n}
}

// Default returns the value a channel holds when nothing is known about it:
// false for boolean channels and 0 for numeric ones.
func Default(c Channel) Value {
	if c.Kind() == KindNumber {
		return NumberValue(0)
	}
	return BoolValue(false)
}

// Kind returns the value kind.
func (v Value) Kind() Kind {
	return v.kind
}

// Bool returns the boolean reading. It is false for numeric values.
func (v Value) Bool() bool {
	return v.b
}

// Number returns the numeric reading. It is 0 for boolean values.
func (v Value) Number() float64 {
	return v.n
}

// String formats the value as it appears on the wire.
func (v Value) String() string {
	if v.kind == KindNumber {
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	}
	return strconv.FormatBool(v.b)
}

// MarshalJSON encodes the value as a JSON boolean or number.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindNumber {
		return json.Marshal(v.n)
	}
	return json.Marshal(v.b)
}
