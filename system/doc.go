/*
Package system manages the background services, metrics and cleanups of a
worker process.

A host owns one System. Components register goroutines with AddService,
shutdown work with AddCleanup and gauges with AddMetrics or AddGauges. The host
starts the system once everything is registered, and stops it and runs the
cleanups when it is disposed.
*/
package system
