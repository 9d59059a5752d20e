/*
Package host builds and runs a worker process: its configuration, its
dependency container and the services that start and stop with it.

A worker exposes a BuilderFactory, usually called CreateBuilder, that returns a
Builder with the worker's services configured. main builds and runs it:

	h, err := calcworker.CreateBuilder(os.Args[1:]).Build(ctx)
	...
	err = h.Run(ctx, shutdownDelay)

Tests build the same Builder through testing/workertest, which can swap any
registered collaborator before the host is built.
*/
package host
