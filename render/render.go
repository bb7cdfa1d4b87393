// Package render turns a tripwire.Snapshot into the dashboard's sensor
// cards, either as values for an API or as plain text for a terminal.
package render

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/tripwire-iot/tripwire"
)

// Title heads the text rendering.
const Title = "Intruder Detection Dashboard (Real-Time)"

// UpdatedLayout is how "Last updated" times are shown.
const UpdatedLayout = "2006-01-02 15:04:05"

// Card is one sensor tile.
type Card struct {
	Channel tripwire.Channel `json:"channel"`
	Label   string           `json:"label"`
	Value   string           `json:"value"`
	Updated string           `json:"updated,omitempty"`
	Active  bool             `json:"active"`
}

// cardOrder is the dashboard layout: the PIR card on its own row, then
// camera beside ultrasonic, then buzzer beside LED.
var cardOrder = []tripwire.Channel{
	tripwire.ChannelPIR,
	tripwire.ChannelCamera,
	tripwire.ChannelUltrasonic,
	tripwire.ChannelBuzzer,
	tripwire.ChannelLED,
}

// Cards builds the five sensor cards for s. Timestamps are shown in loc;
// a nil loc means UTC.
func Cards(s tripwire.Snapshot, loc *time.Location) []Card {
	if loc == nil {
		loc = time.UTC
	}
	cards := make([]Card, 0, len(cardOrder))
	for _, c := range cardOrder {
		card := Card{
			Channel: c,
			Updated: FormatUpdated(s.Timestamp(c), loc),
		}
		switch c {
		case tripwire.ChannelPIR:
			card.Label = "PIR Sensor"
			card.Value = pick(s.Bool(c), "Motion Detected", "No Motion")
			card.Active = s.Bool(c)
		case tripwire.ChannelCamera:
			card.Label = "Camera"
			card.Value = pick(s.Bool(c), "Recording", "Idle")
			card.Active = s.Bool(c)
		case tripwire.ChannelUltrasonic:
			card.Label = "Ultrasonic Sensor"
			card.Value = s.Value(c).String() + " cm"
			card.Active = s.Number(c) > 0
		case tripwire.ChannelBuzzer:
			card.Label = "Buzzer"
			card.Value = pick(s.Bool(c), "On", "Off")
			card.Active = s.Bool(c)
		case tripwire.ChannelLED:
			card.Label = "LED"
			card.Value = pick(s.Bool(c), "On", "Off")
			card.Active = s.Bool(c)
		}
		cards = append(cards, card)
	}
	return cards
}

// FormatUpdated renders an ISO-8601 timestamp in loc. An empty timestamp
// renders as empty; one that does not parse is shown as received.
func FormatUpdated(ts string, loc *time.Location) string {
	if ts == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return t.In(loc).Format(UpdatedLayout)
}

// Text writes the dashboard as an aligned table, one card per line. Active
// cards are marked with '*'.
func Text(w io.Writer, s tripwire.Snapshot, loc *time.Location) error {
	if _, err := fmt.Fprintln(w, Title); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, card := range Cards(s, loc) {
		mark := " "
		if card.Active {
			mark = "*"
		}
		updated := ""
		if card.Updated != "" {
			updated = "Last updated: " + card.Updated
		}
		if _, err := fmt.Fprintf(tw, "%s %s\t%s\t%s\n", mark, card.Label, card.Value, updated); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func pick(on bool, yes, no string) string {
	if on {
		return yes
	}
	return no
}
