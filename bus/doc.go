/*
Package bus defines how a worker offers named operations to a message bus.

A component registers a Handler under an operation name and receives a
Registration. The Registration is the only way to withdraw the handler again,
so a component keeps every Registration it is given (see Registrations) and
cancels them when it stops.

	regs.Add(bus.Register(b, "Plus", h.plus))
	...
	regs.CancelAll()

Cancelling a Registration is a signal to the bus. Invocations already running
through the handler are left to complete.
*/
package bus
