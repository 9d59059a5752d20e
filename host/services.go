package host

import (
	"fmt"
	"reflect"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/dig"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

type descriptor struct {
	ctor  any
	types []reflect.Type
}

// Services collects the constructors a Host's container is built from.
// Registrations are keyed by the types a constructor returns, and a later
// registration of a type replaces any earlier one.
type Services struct {
	descriptors []descriptor
	hosted      []hostedService
	err         error
}

type hostedService struct {
	typ     reflect.Type
	resolve func(*Container) (Service, error)
}

// Provide registers a constructor. Its parameters are resolved from the
// container, and it may return an error as its last result.
func (s *Services) Provide(ctor any) {
	types, err := outputTypes(ctor)
	if err != nil {
		s.err = multierror.Append(s.err, err)
		return
	}
	for _, t := range types {
		s.remove(t)
	}
	s.descriptors = append(s.descriptors, descriptor{ctor: ctor, types: types})
}

// Len is the number of registered constructors.
func (s *Services) Len() int {
	return len(s.descriptors)
}

func (s *Services) has(t reflect.Type) bool {
	for _, d := range s.descriptors {
		for _, dt := range d.types {
			if dt == t {
				return true
			}
		}
	}
	return false
}

func (s *Services) remove(t reflect.Type) {
	kept := s.descriptors[:0]
	for _, d := range s.descriptors {
		if !containsType(d.types, t) {
			kept = append(kept, d)
		}
	}
	s.descriptors = kept
}

func (s *Services) build() (*Container, error) {
	c := dig.New()
	var result error
	for _, d := range s.descriptors {
		if err := c.Provide(d.ctor); err != nil {
			result = multierror.Append(result, fmt.Errorf("host: provide %v: %w", d.types, err))
		}
	}
	if result != nil {
		return nil, result
	}
	return &Container{c: c}, nil
}

// AddSingleton registers v as the instance of T.
func AddSingleton[T any](s *Services, v T) {
	s.Provide(func() T { return v })
}

// Replace registers v as T, dropping whatever was registered for T before.
// Tests use it to swap a collaborator for a fake.
func Replace[T any](s *Services, v T) {
	s.remove(typeOf[T]())
	AddSingleton(s, v)
}

// ReplaceFunc registers ctor as the constructor of T, dropping whatever was
// registered for T before. ctor must return T.
func ReplaceFunc[T any](s *Services, ctor any) {
	t := typeOf[T]()
	types, err := outputTypes(ctor)
	if err != nil {
		s.err = multierror.Append(s.err, err)
		return
	}
	if !containsType(types, t) {
		s.err = multierror.Append(s.err, fmt.Errorf("host: constructor %T does not return %v", ctor, t))
		return
	}
	s.Provide(ctor)
}

// AddHostedService registers ctor and marks the S it returns as a hosted
// service, started and stopped with the Host.
func AddHostedService[S Service](s *Services, ctor any) {
	t := typeOf[S]()
	ReplaceFunc[S](s, ctor)
	for i, h := range s.hosted {
		if h.typ == t {
			s.hosted = append(s.hosted[:i], s.hosted[i+1:]...)
			break
		}
	}
	s.hosted = append(s.hosted, hostedService{
		typ: t,
		resolve: func(c *Container) (Service, error) {
			return Resolve[S](c)
		},
	})
}

// Has reports whether a constructor for T has been registered.
func Has[T any](s *Services) bool {
	return s.has(typeOf[T]())
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func outputTypes(ctor any) ([]reflect.Type, error) {
	ft := reflect.TypeOf(ctor)
	if ft == nil || ft.Kind() != reflect.Func {
		return nil, fmt.Errorf("host: constructor must be a function, got %T", ctor)
	}
	var types []reflect.Type
	for i := 0; i < ft.NumOut(); i++ {
		if out := ft.Out(i); out != errorType {
			types = append(types, out)
		}
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("host: constructor %v returns nothing to register", ft)
	}
	return types, nil
}

func containsType(types []reflect.Type, t reflect.Type) bool {
	for _, dt := range types {
		if dt == t {
			return true
		}
	}
	return false
}
