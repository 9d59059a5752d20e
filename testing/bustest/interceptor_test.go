package bustest

import (
	"context"
	"errors"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"github.com/circleci/workerhost/bus"
)

type request struct {
	Left, Right int
}

type response struct {
	Result int
}

func TestInterceptor_NoHandler(t *testing.T) {
	i := NewInterceptor[request, response]("NotExist")

	_, err := i.Invoke(context.Background(), request{Left: 2, Right: 3})

	var missing *MissingHandlerError
	assert.Assert(t, errors.As(err, &missing))
	assert.Check(t, cmp.DeepEqual(missing, &MissingHandlerError{
		Operation: "NotExist",
		Request:   "bustest.request",
		Response:  "bustest.response",
	}))
	assert.Check(t, cmp.Error(err,
		"no handler was registered for operation name NotExist, request type bustest.request, response type bustest.response"))
}

func TestInterceptor_CaptureOverwrites(t *testing.T) {
	i := NewInterceptor[request, response]("Plus")
	assert.Check(t, cmp.Equal(i.Name(), "Plus"))

	i.Capture(func(_ context.Context, req request) (response, error) {
		return response{Result: -1}, nil
	})
	i.Capture(func(_ context.Context, req request) (response, error) {
		return response{Result: req.Left + req.Right}, nil
	})

	resp, err := i.Invoke(context.Background(), request{Left: 2, Right: 3})
	assert.Assert(t, err)
	assert.Check(t, cmp.Equal(resp.Result, 5))
}

func TestInterceptor_HandlerError(t *testing.T) {
	i := NewInterceptor[request, response]("Divide")
	i.Capture(func(context.Context, request) (response, error) {
		return response{}, errors.New("division by zero")
	})

	_, err := i.Invoke(context.Background(), request{})
	assert.Check(t, cmp.Error(err, "division by zero"))

	h, err := i.Handler()
	assert.Assert(t, err)
	assert.Check(t, h != nil)
	var _ bus.Handler[request, response] = h
}
