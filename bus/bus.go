package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
)

// Handler serves one operation, turning a request into a response.
type Handler[Req, Resp any] func(ctx context.Context, req Req) (Resp, error)

// Endpoint is a Handler with its types erased, so transports can serve it.
type Endpoint interface {
	ServeJSON(ctx context.Context, body []byte) ([]byte, error)
	RequestType() string
	ResponseType() string
}

// Bus accepts operation registrations. Every call returns a new Registration.
type Bus interface {
	RegisterOperation(name string, endpoint Endpoint) *Registration
}

// Register is the typed form of Bus.RegisterOperation.
func Register[Req, Resp any](b Bus, name string, h Handler[Req, Resp]) *Registration {
	return b.RegisterOperation(name, h)
}

func (h Handler[Req, Resp]) ServeJSON(ctx context.Context, body []byte) ([]byte, error) {
	var req Req
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &DecodeError{Type: h.RequestType(), Err: err}
	}
	resp, err := h(ctx, req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(resp)
}

func (h Handler[Req, Resp]) RequestType() string {
	return TypeName[Req]()
}

func (h Handler[Req, Resp]) ResponseType() string {
	return TypeName[Resp]()
}

// TypeName is the name used for T in errors and traces.
func TypeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}

// DecodeError is returned when a request body does not decode into the handler's request type.
type DecodeError struct {
	Type string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode request as %s: %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
