package rabbit

import (
	"context"
	"errors"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
	"gotest.tools/v3/poll"

	"github.com/circleci/workerhost/bus"
	"github.com/circleci/workerhost/config/secret"
	"github.com/circleci/workerhost/system"
	"github.com/circleci/workerhost/testing/rabbitfixture"
	"github.com/circleci/workerhost/testing/testcontext"
)

func TestBus_CallOperation(t *testing.T) {
	ctx := testcontext.Background()
	u := rabbitfixture.New(ctx, t)

	b := loadBus(ctx, t, u)
	client := NewClient(rabbitfixture.Dialer(ctx, t, u), "")

	plusOp := rabbitfixture.QueueName(t, u)
	failOp := rabbitfixture.QueueName(t, u)

	plusReg := bus.Register(b, plusOp, bus.Handler[sumRequest, sumResponse](plus))
	bus.Register(b, failOp, bus.Handler[sumRequest, sumResponse](
		func(context.Context, sumRequest) (sumResponse, error) {
			return sumResponse{}, errors.New("overflow")
		}),
	)

	t.Run("Call returns the handler's response", func(t *testing.T) {
		var resp sumResponse
		waitForCall(t, client, plusOp, sumRequest{Left: 2, Right: 3}, &resp)
		assert.Check(t, cmp.Equal(5, resp.Result))
	})

	t.Run("Handler errors come back as remote errors", func(t *testing.T) {
		var err error
		poll.WaitOn(t, func(t poll.LogT) poll.Result {
			err = call(ctx, client, failOp, sumRequest{}, &sumResponse{})
			if errors.Is(err, context.DeadlineExceeded) {
				return poll.Continue("operation not consuming yet")
			}
			return poll.Success()
		}, poll.WithTimeout(20*time.Second))
		var remote *RemoteError
		assert.Assert(t, errors.As(err, &remote))
		assert.Check(t, cmp.Equal("overflow", remote.Message))
	})

	t.Run("Cancelled operations stop consuming", func(t *testing.T) {
		plusReg.Cancel()
		poll.WaitOn(t, func(t poll.LogT) poll.Result {
			if n := b.counts()[plusOp]; n != 0 {
				return poll.Continue("%d registrations left", n)
			}
			return poll.Success()
		})

		err := call(ctx, client, plusOp, sumRequest{Left: 1, Right: 1}, &sumResponse{})
		assert.Check(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	})
}

func loadBus(ctx context.Context, t *testing.T, u string) *Bus {
	t.Helper()
	sys := system.New()
	b, err := Load(ctx, Config{
		URL:            secret.String(u),
		ConnectionName: "bus-test",
		Prefetch:       4,
	}, sys)
	assert.Assert(t, err)
	t.Cleanup(func() {
		sys.Cleanup(ctx)
	})
	return b
}

func call(ctx context.Context, c *Client, op string, req, resp interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return c.Call(ctx, op, req, resp)
}

// waitForCall retries until the operation's consumer has declared its queue.
func waitForCall(t *testing.T, c *Client, op string, req, resp interface{}) {
	t.Helper()
	ctx := testcontext.Background()
	poll.WaitOn(t, func(t poll.LogT) poll.Result {
		err := call(ctx, c, op, req, resp)
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return poll.Continue("operation not consuming yet")
		case err != nil:
			return poll.Error(err)
		}
		return poll.Success()
	}, poll.WithTimeout(20*time.Second))
}
