package tripwire

import (
	"bytes"
	"encoding/json"
)

// Snapshot is the complete current view across every channel plus the
// timestamp of each channel's most recent applied update.
//
// A Snapshot is a value: every commit produces a new one, so a copy held by
// a subscriber never changes underneath it. Snapshots compare with ==.
type Snapshot struct {
	values     [numChannels]Value
	timestamps [numChannels]string
}

// NewSnapshot returns the initial snapshot: every channel at its default
// value and every timestamp empty.
func NewSnapshot() Snapshot {
	var s Snapshot
	for i, c := range channelOrder {
		s.values[i] = Default(c)
	}
	return s
}

// Value returns the current value of c. Unknown channels yield the zero Value.
func (s Snapshot) Value(c Channel) Value {
	i := c.index()
	if i < 0 {
		return Value{}
	}
	return s.values[i]
}

// Bool returns the boolean reading of c.
func (s Snapshot) Bool(c Channel) bool {
	return s.Value(c).Bool()
}

// Number returns the numeric reading of c.
func (s Snapshot) Number(c Channel) float64 {
	return s.Value(c).Number()
}

// Timestamp returns the ISO-8601 time of the last applied update to c, or
// the empty string if c has never been updated.
func (s Snapshot) Timestamp(c Channel) string {
	i := c.index()
	if i < 0 {
		return ""
	}
	return s.timestamps[i]
}

// With returns a copy of s with c set to v and stamped ts. Values whose kind
// does not match the channel are ignored. It is meant for building fixtures
// and previews; the engine's own snapshots only change through the
// reconciler.
func (s Snapshot) With(c Channel, v Value, ts string) Snapshot {
	if c.Kind() != v.Kind() {
		return s
	}
	return s.with(c, v, ts)
}

// with returns a copy of s with c set to v. An empty ts leaves the
// timestamp untouched.
func (s Snapshot) with(c Channel, v Value, ts string) Snapshot {
	i := c.index()
	if i < 0 {
		return s
	}
	s.values[i] = v
	if ts != "" {
		s.timestamps[i] = ts
	}
	return s
}

// MarshalJSON encodes the snapshot as consumers expect it: one key per
// channel in display order, plus a "timestamps" object with the same keys.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range channelOrder {
		if err := writeMember(&buf, string(c), s.values[i]); err != nil {
			return nil, err
		}
		buf.WriteByte(',')
	}
	buf.WriteString(`"timestamps":{`)
	for i, c := range channelOrder {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeMember(&buf, string(c), s.timestamps[i]); err != nil {
			return nil, err
		}
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

func writeMember(buf *bytes.Buffer, key string, v any) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	val, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(val)
	return nil
}
