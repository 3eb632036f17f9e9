// Package observability carries persistence events to logs and metrics.
// Level values follow OpenTelemetry SeverityNumbers so events can be handed to
// OTel collectors without translation.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// Level is the severity of an Event.
type Level int

const (
	LevelVerbose Level = 5  // OTel DEBUG (5-8)
	LevelInfo    Level = 9  // OTel INFO (9-12)
	LevelWarning Level = 13 // OTel WARN (13-16)
	LevelError   Level = 17 // OTel ERROR (17-20)
)

// severity bands in ascending order; the first band whose max is >= the level wins.
var bands = []struct {
	max  Level
	text string
	slog slog.Level
}{
	{max: 4, text: "TRACE", slog: slog.LevelDebug},
	{max: 8, text: "DEBUG", slog: slog.LevelDebug},
	{max: 12, text: "INFO", slog: slog.LevelInfo},
	{max: 16, text: "WARN", slog: slog.LevelWarn},
	{max: 20, text: "ERROR", slog: slog.LevelError},
}

func (l Level) band() (string, slog.Level) {
	for _, b := range bands {
		if l <= b.max {
			return b.text, b.slog
		}
	}
	return "FATAL", slog.LevelError
}

// String returns the OTel severity text.
func (l Level) String() string {
	text, _ := l.band()
	return text
}

// SlogLevel returns the slog level events of this severity are logged at.
func (l Level) SlogLevel() slog.Level {
	_, level := l.band()
	return level
}

// EventType names an event, e.g. "persistence.save".
type EventType string

// Event is a single observation emitted by the persistence layer.
type Event struct {
	Type      EventType
	Level     Level
	Timestamp time.Time
	Source    string
	Data      map[string]any
}

// Observer receives events. Implementations must be safe for concurrent use.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, event Event)

func (f ObserverFunc) OnEvent(ctx context.Context, event Event) {
	f(ctx, event)
}

// Discard is an Observer that drops every event.
var Discard Observer = discard{}

type discard struct{}

func (discard) OnEvent(context.Context, Event) {}

// Combine returns an Observer forwarding each event to every non-nil
// observer in order. With no observers left it returns Discard, and with one
// it returns that observer unwrapped.
func Combine(observers ...Observer) Observer {
	filtered := make(multiObserver, 0, len(observers))
	for _, obs := range observers {
		if obs != nil {
			filtered = append(filtered, obs)
		}
	}

	switch len(filtered) {
	case 0:
		return Discard
	case 1:
		return filtered[0]
	default:
		return filtered
	}
}

type multiObserver []Observer

func (m multiObserver) OnEvent(ctx context.Context, event Event) {
	for _, obs := range m {
		obs.OnEvent(ctx, event)
	}
}
