package honeycomb

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/honeycombio/libhoney-go/transmission"

	"github.com/circleci/workerhost/colourise"
	"github.com/circleci/workerhost/o11y"
)

// TextSender is a transmission.Sender writing each event as a line of text,
// for reading traces in a terminal or in test output:
//
//	19:01:12 1e113 0.577ms bus: handle Plus result=success app.correlation_id=c0ffee
//
// After the time, the tail of the trace ID, the duration and the span name
// come the outcome fields, then the rest sorted by key. Beeline bookkeeping is
// left out, as is the operation when the span name already ends with it.
type TextSender struct {
	w      io.Writer
	colour bool

	mu        sync.Mutex
	responses chan transmission.Response
}

var _ transmission.Sender = (*TextSender)(nil)

func (t *TextSender) Start() error {
	t.responses = make(chan transmission.Response, 100)
	return nil
}

func (t *TextSender) Stop() error  { return nil }
func (t *TextSender) Flush() error { return nil }

func (t *TextSender) Add(ev *transmission.Event) {
	line := t.format(ev)

	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = io.WriteString(t.w, line)
	t.SendResponse(transmission.Response{Metadata: ev.Metadata})
}

func (t *TextSender) TxResponses() chan transmission.Response {
	return t.responses
}

// SendResponse reports true when the response had to be dropped.
func (t *TextSender) SendResponse(r transmission.Response) bool {
	select {
	case t.responses <- r:
		return false
	default:
		return true
	}
}

// outcome fields are written first, in this order.
var outcome = []string{o11y.FieldResult, "error", "warning"}

func (t *TextSender) format(ev *transmission.Event) string {
	name, _ := ev.Data["name"].(string)
	duration, _ := number(ev.Data["duration_ms"])

	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "%s %s %.3fms %s",
		ev.Timestamp.Format("15:04:05"),
		t.paint(traceTail(ev.Data["trace.trace_id"])),
		duration,
		t.paint(name),
	)
	for _, k := range fieldOrder(ev.Data) {
		if hidden(k, name, ev.Data[k]) {
			continue
		}
		label := k
		if k == "error" && t.colour {
			label = colourise.ErrorHighlight(k)
		}
		_, _ = fmt.Fprintf(&b, " %s=%v", label, ev.Data[k])
	}
	b.WriteByte('\n')
	return b.String()
}

func (t *TextSender) paint(s string) string {
	if t.colour {
		return colourise.ApplyColour(s)
	}
	return s
}

// fieldOrder lists the outcome fields present in data, then the other keys
// sorted.
func fieldOrder(data map[string]any) []string {
	keys := make([]string, 0, len(data))
	for _, k := range outcome {
		if _, ok := data[k]; ok {
			keys = append(keys, k)
		}
	}
	rest := make([]string, 0, len(data))
	for k := range data {
		if !isOutcome(k) {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func isOutcome(k string) bool {
	for _, o := range outcome {
		if k == o {
			return true
		}
	}
	return false
}

func hidden(k, name string, val any) bool {
	switch k {
	case "name", "service", "version", "duration_ms":
		return true
	case "app." + o11y.FieldOperation:
		return strings.HasSuffix(name, fmt.Sprintf(" %v", val))
	}
	return strings.HasPrefix(k, "trace.") || strings.HasPrefix(k, "meta.")
}

// traceTail is enough of a trace ID to tell interleaved traces apart.
func traceTail(v any) string {
	id, _ := v.(string)
	if len(id) < 5 {
		return "-----"
	}
	return id[len(id)-5:]
}
