package tripwire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// timestampKey is the wire key carrying an update's time.
const timestampKey = "timestamp"

// Decode errors. Every failure wraps exactly one of these.
var (
	// ErrMalformedFrame means the frame is not valid JSON, even after quote
	// normalisation.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrNotObject means the frame is valid JSON but not an object.
	ErrNotObject = errors.New("frame is not a JSON object")

	// ErrInvalidValue means a recognised key carries a value of the wrong type.
	ErrInvalidValue = errors.New("invalid value")
)

// Decoder turns raw inbound frames into Events.
//
// The wire format is a JSON object. One known producer emits single-quoted
// pseudo-JSON such as {'pir': true}; any frame containing a single quote has
// every single quote replaced with a double quote before parsing.
type Decoder struct{}

// NewDecoder creates a Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode parses one frame. On error the returned Event is empty and must not
// be applied.
func (d *Decoder) Decode(raw []byte) (Event, error) {
	data := normalizeQuotes(raw)

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Event{}, fmt.Errorf("%w: got %s", ErrNotObject, typeErr.Value)
		}
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if obj == nil {
		// a literal null decodes without error into a nil map
		return Event{}, fmt.Errorf("%w: got null", ErrNotObject)
	}

	var ev Event
	for key, val := range obj {
		if key == timestampKey {
			ts, err := decodeTimestamp(val)
			if err != nil {
				return Event{}, err
			}
			ev.timestamp = ts
			continue
		}

		c, ok := ParseChannel(key)
		if !ok {
			ev.ignored = append(ev.ignored, key)
			continue
		}
		v, err := decodeValue(c, val)
		if err != nil {
			return Event{}, err
		}
		i := c.index()
		ev.present[i] = true
		ev.values[i] = v
	}
	sort.Strings(ev.ignored)

	return ev, nil
}

func normalizeQuotes(raw []byte) []byte {
	if bytes.IndexByte(raw, '\'') < 0 {
		return raw
	}
	return bytes.ReplaceAll(raw, []byte{'\''}, []byte{'"'})
}

func decodeValue(c Channel, raw json.RawMessage) (Value, error) {
	switch c.Kind() {
	case KindNumber:
		var n *float64
		if err := json.Unmarshal(raw, &n); err != nil || n == nil {
			return Value{}, fmt.Errorf("%w: %s must be a number, got %s", ErrInvalidValue, c, raw)
		}
		return NumberValue(*n), nil
	default:
		var b *bool
		if err := json.Unmarshal(raw, &b); err != nil || b == nil {
			return Value{}, fmt.Errorf("%w: %s must be a boolean, got %s", ErrInvalidValue, c, raw)
		}
		return BoolValue(*b), nil
	}
}

func decodeTimestamp(raw json.RawMessage) (string, error) {
	var ts *string
	if err := json.Unmarshal(raw, &ts); err != nil {
		return "", fmt.Errorf("%w: timestamp must be a string, got %s", ErrInvalidValue, raw)
	}
	if ts == nil {
		// null behaves like an absent timestamp
		return "", nil
	}
	return *ts, nil
}
