package workertest

import (
	"net/url"
	"reflect"
	"runtime"
	"strings"

	"github.com/circleci/workerhost/host"
)

// Application identifies the worker under test by its package.
type Application struct {
	// Name is the last element of the package path, e.g. calcworker.
	Name string
	// FullName is the package import path.
	FullName string
}

func (a Application) String() string {
	return a.FullName
}

func applicationFromPackage(pkg string) Application {
	return Application{
		Name:     pkg[strings.LastIndex(pkg, "/")+1:],
		FullName: pkg,
	}
}

// resolveBootstrap calls the worker's builder factory and works out which
// package the worker is, unless app is already known.
func resolveBootstrap(factory host.BuilderFactory, app Application) (*host.Builder, Application, error) {
	if factory == nil {
		return nil, app, &ResolutionError{Reason: "the builder factory is nil"}
	}

	symbol := funcName(factory)
	if app.FullName == "" {
		pkg := packageOf(symbol)
		if pkg == "" {
			return nil, app, &ResolutionError{Factory: symbol, Reason: "cannot determine the worker's package"}
		}
		app = applicationFromPackage(pkg)
	}

	b := factory([]string{})
	if b == nil {
		return nil, app, &ResolutionError{Factory: symbol, Reason: "the builder factory returned a nil builder"}
	}
	return b, app, nil
}

func funcName(fn any) string {
	f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if f == nil {
		return ""
	}
	return f.Name()
}

// packageOf returns the import path from a symbol name such as
// github.com/circleci/workerhost/example/calcworker.CreateBuilder.
// External test packages resolve to the package they test.
func packageOf(symbol string) string {
	slash := strings.LastIndex(symbol, "/")
	dot := strings.Index(symbol[slash+1:], ".")
	if dot <= 0 {
		return ""
	}
	pkg := symbol[:slash+1+dot]
	// The runtime escapes dots in the last path element, as in yaml%2ev3.
	if unescaped, err := url.PathUnescape(pkg); err == nil {
		pkg = unescaped
	}
	return strings.TrimSuffix(pkg, "_test")
}
