package bustest

import (
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/circleci/workerhost/bus"
)

const registerOperation = "RegisterOperation"

// MockBus is a bus.Bus for tests. Calls matching an expectation go through
// testify's mock. Unless a return value is set each call gets its own
// Registration, and registrations nobody set an expectation for are accepted.
type MockBus struct {
	mock.Mock

	// expectMu orders On against the expectation check in RegisterOperation.
	expectMu sync.RWMutex

	mu     sync.Mutex
	issued []*bus.Registration
}

var _ bus.Bus = (*MockBus)(nil)

func (m *MockBus) RegisterOperation(name string, endpoint bus.Endpoint) *bus.Registration {
	var reg *bus.Registration
	if m.expects(name, endpoint) {
		args := m.Called(name, endpoint)
		if len(args) > 0 {
			reg, _ = args.Get(0).(*bus.Registration)
		}
	}
	if reg == nil {
		reg = bus.NewRegistration(name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.issued = append(m.issued, reg)
	return reg
}

// On adds an expectation. It is safe to call while the worker is registering.
func (m *MockBus) On(methodName string, arguments ...interface{}) *mock.Call {
	m.expectMu.Lock()
	defer m.expectMu.Unlock()
	return m.Mock.On(methodName, arguments...)
}

func (m *MockBus) expects(args ...interface{}) bool {
	m.expectMu.RLock()
	defer m.expectMu.RUnlock()
	for _, call := range m.ExpectedCalls {
		if call.Method != registerOperation {
			continue
		}
		if _, diffs := call.Arguments.Diff(args); diffs == 0 {
			return true
		}
	}
	return false
}

// Registrations returns every Registration handed out so far.
func (m *MockBus) Registrations() []*bus.Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*bus.Registration(nil), m.issued...)
}

// SetupOperationInterceptor makes m capture handlers registered under name
// with the given request and response types. Registrations with other types
// are not matched by this expectation.
func SetupOperationInterceptor[Req, Resp any](m *MockBus, name string) *Interceptor[Req, Resp] {
	i := NewInterceptor[Req, Resp](name)
	m.On(registerOperation, name, mock.MatchedBy(func(bus.Handler[Req, Resp]) bool { return true })).
		Run(func(args mock.Arguments) {
			i.Capture(args.Get(1).(bus.Handler[Req, Resp]))
		}).
		Maybe()
	return i
}
