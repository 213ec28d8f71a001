package debug

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/cubegraph/cubeplan/catalog"
)

// EventSink renders catalog.Event values for interactive tailing, the
// same Handler-over-io.Writer shape as annotations.OutputFormatter: a
// caller registers Listen with catalog.Metastore.Subscribe and every
// committed mutation prints as it happens.
type EventSink struct {
	useColor bool
	writer   io.Writer
}

func NewEventSink(w io.Writer) *EventSink {
	return &EventSink{useColor: isTerminalWriter(w), writer: w}
}

// Listen is a catalog.EventListener: pass it directly to
// Metastore.Subscribe.
func (s *EventSink) Listen(e catalog.Event) {
	fmt.Fprintln(s.writer, s.format(e))
}

func (s *EventSink) format(e catalog.Event) string {
	verb := s.colorize(eventVerb(e.Type), eventColor(e.Type))
	return fmt.Sprintf("%s %s %s", verb, e.Kind, s.summarize(e))
}

func eventVerb(t catalog.EventType) string {
	switch t {
	case catalog.EventInsert:
		return "+"
	case catalog.EventUpdate:
		return "~"
	case catalog.EventDelete:
		return "-"
	default:
		return "?"
	}
}

func eventColor(t catalog.EventType) color.Attribute {
	switch t {
	case catalog.EventInsert:
		return color.FgGreen
	case catalog.EventUpdate:
		return color.FgYellow
	case catalog.EventDelete:
		return color.FgRed
	default:
		return color.FgWhite
	}
}

func (s *EventSink) summarize(e catalog.Event) string {
	switch {
	case e.New != nil:
		return fmt.Sprintf("%v", e.New)
	case e.Old != nil:
		return fmt.Sprintf("%v", e.Old)
	default:
		return ""
	}
}

func (s *EventSink) colorize(text string, attr color.Attribute) string {
	if !s.useColor {
		return text
	}
	return color.New(attr).Sprint(text)
}
