package honeycomb

import (
	"bytes"
	"testing"
	"time"

	"github.com/honeycombio/libhoney-go/transmission"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

var eventTime = time.Date(2019, 9, 12, 19, 1, 12, 137602525, time.UTC)

func TestTextSender(t *testing.T) {
	//nolint: lll
	tests := []struct {
		name string
		data map[string]any
		want string
	}{
		{
			name: "application fields sorted",
			data: map[string]any{"app.operation": "Plus", "app.left": 2, "app.right": 3, "duration_ms": 0.075231, "meta.beeline_version": "1.11.1", "meta.span_type": "leaf", "name": "calcworker: plus", "service": "calcworker", "trace.parent_id": "223ebb27-c7f3-41c8-86e6-cc47e7e809d0", "trace.span_id": "29d98eb0-81c0-4538-a8b5-8296ff40563f", "trace.trace_id": "9e020857-1248-431f-b2dd-f1541bd1e113", "version": "dev"},
			want: "19:01:12 1e113 0.075ms calcworker: plus app.left=2 app.operation=Plus app.right=3\n",
		},
		{
			name: "outcome first",
			data: map[string]any{"app.consumers": 2, "result": "success", "duration_ms": 0.577148, "meta.span_type": "leaf", "name": "rabbit: close bus", "trace.trace_id": "9e020857-1248-431f-b2dd-f1541bd1e113"},
			want: "19:01:12 1e113 0.577ms rabbit: close bus result=success app.consumers=2\n",
		},
		{
			name: "operation named by the span",
			data: map[string]any{"app.operation": "Plus", "app.correlation_id": "c0ffee", "error": "overflow", "result": "error", "duration_ms": 1.5, "name": "bus: handle Plus", "trace.trace_id": "9e020857-1248-431f-b2dd-f1541bd1e113"},
			want: "19:01:12 1e113 1.500ms bus: handle Plus result=error error=overflow app.correlation_id=c0ffee\n",
		},
		{
			name: "operation not named by the span",
			data: map[string]any{"app.operation": "Minus", "warning": "no reply queue", "result": "success", "duration_ms": 0.2, "name": "bus: reply Plus", "trace.trace_id": "9e020857-1248-431f-b2dd-f1541bd1e113"},
			want: "19:01:12 1e113 0.200ms bus: reply Plus result=success warning=no reply queue app.operation=Minus\n",
		},
		{
			name: "no trace",
			data: map[string]any{"duration_ms": 1.455143, "meta.span_type": "root", "name": "host: start", "service": "calcworker", "trace.span_id": "223ebb27-c7f3-41c8-86e6-cc47e7e809d0"},
			want: "19:01:12 ----- 1.455ms host: start\n",
		},
		{
			name: "no duration",
			data: map[string]any{"name": "bus: registered"},
			want: "19:01:12 ----- 0.000ms bus: registered\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			s := &TextSender{w: buf}
			assert.Assert(t, s.Start())

			s.Add(&transmission.Event{Timestamp: eventTime, Data: tt.data})
			assert.Check(t, cmp.Equal(tt.want, buf.String()))
		})
	}
}

func TestTextSender_Colour(t *testing.T) {
	buf := new(bytes.Buffer)
	s := &TextSender{w: buf, colour: true}
	assert.Assert(t, s.Start())

	s.Add(&transmission.Event{Timestamp: eventTime, Data: map[string]any{
		"name": "bus: handle Plus", "result": "error", "error": "overflow",
	}})
	assert.Check(t, cmp.Contains(buf.String(), "\x1b[1;37;41merror\x1b[0m=overflow"))
	assert.Check(t, cmp.Contains(buf.String(), "result=error"))
}

func TestTextSender_Responses(t *testing.T) {
	s := &TextSender{w: new(bytes.Buffer)}
	assert.Assert(t, s.Start())

	s.Add(&transmission.Event{Timestamp: eventTime, Metadata: "first"})
	r := <-s.TxResponses()
	assert.Check(t, cmp.Equal("first", r.Metadata))

	for i := 0; i < cap(s.responses); i++ {
		assert.Check(t, !s.SendResponse(transmission.Response{}))
	}
	assert.Check(t, s.SendResponse(transmission.Response{}), "a full channel drops the response")
}
