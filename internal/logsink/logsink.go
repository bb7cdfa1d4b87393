// Package logsink writes tripwire signals to a log.Logger, one line per
// event.
package logsink

import (
	"context"
	"log"
	"strconv"
	"strings"

	"github.com/tripwire-iot/tripwire"
	"github.com/zoobzio/capitan"
)

type field func(e *capitan.Event) (string, bool)

type route struct {
	level   string
	message string
	debug   bool
	fields  []field
}

func engine(e *capitan.Event) (string, bool) {
	v, ok := tripwire.KeyEngine.From(e)
	return "engine=" + v, ok
}

func state(e *capitan.Event) (string, bool) {
	v, ok := tripwire.KeyState.From(e)
	return "state=" + v, ok
}

func channel(e *capitan.Event) (string, bool) {
	v, ok := tripwire.KeyChannel.From(e)
	return "channel=" + v, ok
}

func channels(e *capitan.Event) (string, bool) {
	v, ok := tripwire.KeyChannels.From(e)
	return "channels=" + v, ok
}

func ignored(e *capitan.Event) (string, bool) {
	v, ok := tripwire.KeyFields.From(e)
	return "fields=" + v, ok
}

func frame(e *capitan.Event) (string, bool) {
	v, ok := tripwire.KeyFrame.From(e)
	return "frame=" + strconv.Quote(v), ok
}

func errorMsg(e *capitan.Event) (string, bool) {
	v, ok := tripwire.KeyError.From(e)
	return "error=" + strconv.Quote(v), ok
}

func endpoint(e *capitan.Event) (string, bool) {
	v, ok := tripwire.KeyEndpoint.From(e)
	return "endpoint=" + v, ok
}

func backoff(e *capitan.Event) (string, bool) {
	v, ok := tripwire.KeyBackoff.From(e)
	return "backoff=" + v.String(), ok
}

func ttl(e *capitan.Event) (string, bool) {
	v, ok := tripwire.KeyTTL.From(e)
	return "ttl=" + v.String(), ok
}

func step(e *capitan.Event) (string, bool) {
	v, ok := tripwire.KeyStep.From(e)
	return "step=" + strconv.Itoa(v), ok
}

// Install hooks every tripwire signal and writes it to logger. Debug-level
// signals (raw frames, commits) are only written when verbose is set.
// Hooks are process wide, so Install should be called once.
func Install(logger *log.Logger, verbose bool) {
	sink := func(r route) func(context.Context, *capitan.Event) {
		return func(_ context.Context, e *capitan.Event) {
			if r.debug && !verbose {
				return
			}
			logger.Println(format(r, e))
		}
	}

	capitan.Hook(tripwire.EngineStarted, sink(route{"INFO", "engine started", false, []field{engine, ttl}}))
	capitan.Hook(tripwire.EngineStopped, sink(route{"INFO", "engine stopped", false, []field{engine, state}}))
	capitan.Hook(tripwire.FrameReceived, sink(route{"DEBUG", "frame received", true, []field{engine, frame}}))
	capitan.Hook(tripwire.FrameDecodeFailed, sink(route{"WARN", "frame dropped", false, []field{engine, frame, errorMsg}}))
	capitan.Hook(tripwire.FrameFieldsIgnored, sink(route{"DEBUG", "frame fields ignored", true, []field{engine, ignored}}))
	capitan.Hook(tripwire.SnapshotCommitted, sink(route{"DEBUG", "snapshot committed", true, []field{engine, channels}}))
	capitan.Hook(tripwire.ChannelExpired, sink(route{"INFO", "channel expired", false, []field{engine, channel}}))
	capitan.Hook(tripwire.TransportConnected, sink(route{"INFO", "transport connected", false, []field{endpoint}}))
	capitan.Hook(tripwire.TransportDisconnected, sink(route{"WARN", "transport disconnected", false, []field{endpoint, backoff, errorMsg}}))
	capitan.Hook(tripwire.TransportDialFailed, sink(route{"WARN", "transport dial failed", false, []field{endpoint, backoff, errorMsg}}))
	capitan.Hook(tripwire.TransportSendDropped, sink(route{"WARN", "send dropped", false, []field{endpoint, errorMsg}}))
	capitan.Hook(tripwire.SyntheticStep, sink(route{"INFO", "synthetic step", false, []field{engine, step, channels, state}}))
}

func format(r route, e *capitan.Event) string {
	var b strings.Builder
	b.WriteString(r.level)
	b.WriteByte(' ')
	b.WriteString(r.message)
	for _, f := range r.fields {
		if s, ok := f(e); ok {
			b.WriteByte(' ')
			b.WriteString(s)
		}
	}
	return b.String()
}
