// Package notify delivers gateway events to the community's Discord
// channels. Delivery is fire-and-forget: a dead webhook is logged and
// never affects a moderation decision.
package notify

import (
	"fmt"
	"sort"
	"strings"
)

// Channels events can be routed to.
const (
	ChannelModeration = "moderation"
	ChannelChat       = "chat"
	ChannelStatus     = "status"
)

// Embed colors per event severity.
const (
	ColorInfo   = 0x3498db
	ColorGood   = 0x2ecc71
	ColorWarn   = 0xe67e22
	ColorDanger = 0xe74c3c
)

// Field is one labelled detail attached to an event.
type Field struct {
	Name  string
	Value string
}

// Event is a single notification.
type Event struct {
	Title       string
	Description string
	Color       int
	Channel     string
	Fields      []Field
}

// Notifier delivers events. Implementations must not block the caller
// beyond queueing and must swallow their own failures.
type Notifier interface {
	Notify(ev Event)
}

// Nop is a Notifier that discards everything.
type Nop struct{}

func (Nop) Notify(Event) {}

// Fields converts a detail map into sorted embed fields.
func Fields(params map[string]any) []Field {
	if len(params) == 0 {
		return nil
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, Field{Name: k, Value: fmt.Sprint(params[k])})
	}
	return fields
}

// FormatFields renders a detail map as a single readable line, used for
// log output and the audit trail.
func FormatFields(params map[string]any) string {
	if len(params) == 0 {
		return "[]"
	}
	fields := Fields(params)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Name+"="+f.Value)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
