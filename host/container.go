package host

import (
	"go.uber.org/dig"
)

// Container resolves the services registered for a Host.
type Container struct {
	c *dig.Container
}

// Invoke calls fn with its parameters resolved from the container.
func (c *Container) Invoke(fn any) error {
	return c.c.Invoke(fn)
}

// Resolve returns the instance of T, constructing it and its dependencies if needed.
func Resolve[T any](c *Container) (T, error) {
	var v T
	err := c.Invoke(func(resolved T) {
		v = resolved
	})
	return v, err
}

func MustResolve[T any](c *Container) T {
	v, err := Resolve[T](c)
	if err != nil {
		panic(err)
	}
	return v
}
