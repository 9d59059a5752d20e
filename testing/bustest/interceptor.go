// Package bustest captures the handlers a worker registers on its bus, so
// tests can invoke them directly without a broker.
package bustest

import (
	"context"
	"fmt"
	"sync"

	"github.com/circleci/workerhost/bus"
)

// MissingHandlerError is returned when an interceptor is used before any
// handler was registered for its operation and types.
type MissingHandlerError struct {
	Operation string
	Request   string
	Response  string
}

func (e *MissingHandlerError) Error() string {
	return fmt.Sprintf("no handler was registered for operation name %s, request type %s, response type %s",
		e.Operation, e.Request, e.Response)
}

// Interceptor holds the most recent handler registered for one operation
// name with one request and response type.
type Interceptor[Req, Resp any] struct {
	name string

	mu      sync.Mutex
	handler bus.Handler[Req, Resp]
}

func NewInterceptor[Req, Resp any](name string) *Interceptor[Req, Resp] {
	return &Interceptor[Req, Resp]{name: name}
}

func (i *Interceptor[Req, Resp]) Name() string {
	return i.name
}

// Capture stores h, replacing any handler captured before.
func (i *Interceptor[Req, Resp]) Capture(h bus.Handler[Req, Resp]) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.handler = h
}

func (i *Interceptor[Req, Resp]) Handler() (bus.Handler[Req, Resp], error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.handler == nil {
		return nil, &MissingHandlerError{
			Operation: i.name,
			Request:   bus.TypeName[Req](),
			Response:  bus.TypeName[Resp](),
		}
	}
	return i.handler, nil
}

// Invoke calls the captured handler with req.
func (i *Interceptor[Req, Resp]) Invoke(ctx context.Context, req Req) (Resp, error) {
	h, err := i.Handler()
	if err != nil {
		var zero Resp
		return zero, err
	}
	return h(ctx, req)
}
