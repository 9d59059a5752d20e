/*
Package worker runs a loop calling a unit of work, with tracing and a back-off
when the work reports there was nothing to do.

The system package uses it for the periodic metrics reporter.
*/
package worker
