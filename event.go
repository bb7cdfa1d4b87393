package tripwire

import "bytes"

// Event is a decoded partial update: zero or more channel readings plus an
// optional timestamp. A channel absent from the event carries no
// information and must never be read as "set to default".
type Event struct {
	present   [numChannels]bool
	values    [numChannels]Value
	timestamp string
	ignored   []string
}

// NewEvent returns an event with no channels set.
func NewEvent() Event {
	return Event{}
}

// With returns a copy of e carrying v for c. Values whose kind does not
// match the channel, and unknown channels, are ignored.
func (e Event) With(c Channel, v Value) Event {
	i := c.index()
	if i < 0 || v.Kind() != c.Kind() {
		return e
	}
	e.present[i] = true
	e.values[i] = v
	return e
}

// WithTimestamp returns a copy of e stamped with ts.
func (e Event) WithTimestamp(ts string) Event {
	e.timestamp = ts
	return e
}

// Has reports whether the event carries a reading for c.
func (e Event) Has(c Channel) bool {
	i := c.index()
	return i >= 0 && e.present[i]
}

// Get returns the reading for c and whether it is present.
func (e Event) Get(c Channel) (Value, bool) {
	i := c.index()
	if i < 0 || !e.present[i] {
		return Value{}, false
	}
	return e.values[i], true
}

// Channels returns the channels present in the event, in display order.
func (e Event) Channels() []Channel {
	var out []Channel
	for i, c := range channelOrder {
		if e.present[i] {
			out = append(out, c)
		}
	}
	return out
}

// Empty reports whether the event carries no channel readings.
func (e Event) Empty() bool {
	for _, p := range e.present {
		if p {
			return false
		}
	}
	return true
}

// Timestamp returns the event's timestamp and whether one was supplied.
func (e Event) Timestamp() (string, bool) {
	return e.timestamp, e.timestamp != ""
}

// Ignored returns the keys of the source frame that were not recognised.
func (e Event) Ignored() []string {
	return e.ignored
}

// MarshalJSON encodes only the present channels, followed by the timestamp
// when one is set. This is the outbound frame format.
func (e Event) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	sep := func() {
		if !first {
			buf.WriteByte(',')
		}
		first = false
	}
	for i, c := range channelOrder {
		if !e.present[i] {
			continue
		}
		sep()
		if err := writeMember(&buf, string(c), e.values[i]); err != nil {
			return nil, err
		}
	}
	if e.timestamp != "" {
		sep()
		if err := writeMember(&buf, timestampKey, e.timestamp); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
