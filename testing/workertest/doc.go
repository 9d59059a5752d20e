/*
Package workertest runs a worker inside the test process.

A Factory takes the worker's host.BuilderFactory, finds the worker's content
root, applies any test configuration and starts the host. Tests usually derive
a Factory that swaps the real bus for a bustest.MockBus, then invoke the
handlers the worker registered:

	m := &bustest.MockBus{}
	plus := bustest.SetupOperationInterceptor[calcworker.RequestMessage, calcworker.ResponseMessage](m, "Plus")

	f := workertest.New(calcworker.CreateBuilder).WithHostBuilder(func(b *host.Builder) {
		b.ConfigureServices(func(_ host.Context, s *host.Services) {
			host.Replace[bus.Bus](s, m)
		})
	})
	workertest.Start(ctx, t, f)

	resp, err := plus.Invoke(ctx, calcworker.RequestMessage{Left: 2, Right: 3})

The content root is taken from ContentRoot declarations made with
DeclareContentRoot when one matches the worker, otherwise it is found by
walking up from the test's working directory to the module root.
*/
package workertest
