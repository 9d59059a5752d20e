package workertest

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyStarted = errors.New("workertest: factory has already been started")
	ErrDisposed       = errors.New("workertest: factory has been disposed")
	ErrNotStarted     = &NotStartedError{}
)

// NotStartedError is returned when the host is asked for before Start has completed.
type NotStartedError struct{}

func (e *NotStartedError) Error() string {
	return "workertest: the host has not been started, call Start first"
}

// ResolutionError means the worker's builder could not be obtained.
type ResolutionError struct {
	Factory string
	Reason  string
}

func (e *ResolutionError) Error() string {
	if e.Factory == "" {
		return fmt.Sprintf("workertest: cannot resolve the worker's builder: %s", e.Reason)
	}
	return fmt.Sprintf("workertest: cannot resolve the worker's builder from %s: %s", e.Factory, e.Reason)
}

// ContentRootResolutionError means no content root could be found for the worker.
type ContentRootResolutionError struct {
	Application string
	BaseDir     string
	Marker      string
}

func (e *ContentRootResolutionError) Error() string {
	return fmt.Sprintf("workertest: no content root found for %s: no ContentRoot declaration matched "+
		"and no directory from %s upwards contains %q. Declare one with workertest.DeclareContentRoot "+
		"or use WithSolutionRelativeContentRoot", e.Application, e.BaseDir, e.Marker)
}

// DependencyManifestError means the go.mod describing the test's module could not be read.
type DependencyManifestError struct {
	Dir string
	Err error
}

func (e *DependencyManifestError) Error() string {
	msg := fmt.Sprintf("workertest: no go.mod found in %s or any parent directory", e.Dir)
	if e.Err != nil {
		msg = fmt.Sprintf("workertest: cannot read go.mod for %s: %v", e.Dir, e.Err)
	}
	return msg + `. The test harness reads the module's go.mod to find the worker and the test packages that declare its content root. To fix this:
  1. run the tests with 'go test' so the working directory is inside the module; a test binary copied elsewhere cannot find it
  2. check the toolchain with 'go version' and 'go env GOMOD'; module mode is required`
}

func (e *DependencyManifestError) Unwrap() error {
	return e.Err
}
