package workertest

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/circleci/workerhost/o11y"
)

// ContentRoot declares where a worker's content root is, relative to the
// declaring package's directory, which is where go test runs its tests.
type ContentRoot struct {
	// Key matches the worker's package name or import path, ignoring case.
	Key string
	// Path is the content root, relative to the declaring package's directory.
	Path string
	// Marker is a file that must exist in the content root for it to be used.
	Marker string
	// Priority orders matching declarations, lowest first.
	Priority int
}

// TestModule is a package that declared content roots, and the module it belongs to.
type TestModule struct {
	Package string
	// Dir is the declaring package's directory. Relative paths are resolved
	// against it, or against the factory's base directory when it is empty.
	Dir          string
	Module       string
	Requires     []string
	ContentRoots []ContentRoot
}

type declaration struct {
	pkg   string
	dir   string
	roots []ContentRoot
}

var declarations struct {
	sync.Mutex
	list []*declaration
}

// DeclareContentRoot records content root declarations for the calling
// package. Call it from an init func or a package level var of a test package.
func DeclareContentRoot(roots ...ContentRoot) bool {
	pc, file, _, ok := runtime.Caller(1)
	if !ok {
		return false
	}
	pkg := packageOf(runtime.FuncForPC(pc).Name())
	if pkg == "" {
		return false
	}
	declare(pkg, filepath.Dir(file), roots...)
	return true
}

func declare(pkg, dir string, roots ...ContentRoot) {
	declarations.Lock()
	defer declarations.Unlock()
	for _, d := range declarations.list {
		if d.pkg == pkg {
			d.roots = append(d.roots, roots...)
			return
		}
	}
	declarations.list = append(declarations.list, &declaration{pkg: pkg, dir: dir, roots: roots})
}

func declared() []declaration {
	declarations.Lock()
	defer declarations.Unlock()
	out := make([]declaration, 0, len(declarations.list))
	for _, d := range declarations.list {
		out = append(out, declaration{pkg: d.pkg, dir: d.dir, roots: append([]ContentRoot(nil), d.roots...)})
	}
	return out
}

// DiscoverTestModules returns the declaring packages, within the module at
// baseDir or the modules it requires, whose module contains or requires app.
// It never fails: any problem is logged and yields no modules.
func DiscoverTestModules(ctx context.Context, app Application, baseDir string) (modules []TestModule) {
	ctx, span := o11y.StartSpan(ctx, "workertest: discover test modules")
	defer span.End()
	span.AddField("application", app.FullName)

	defer func() {
		if r := recover(); r != nil {
			o11y.LogError(ctx, "workertest: discovery failed", fmt.Errorf("panic: %v", r))
			modules = nil
		}
	}()

	root, err := LoadManifest(baseDir)
	if err != nil {
		o11y.LogError(ctx, "workertest: discovery skipped", err)
		return nil
	}

	manifests := map[string]*Manifest{}
	for _, d := range declared() {
		owner, err := ownerOf(manifests, d.dir)
		if err != nil {
			o11y.LogError(ctx, "workertest: discovery skipped package", err, o11y.Field("package", d.pkg))
			continue
		}
		if owner.ModulePath() != root.moduleOf(d.pkg) {
			continue
		}
		// Module level: requiring the worker's module is enough. Roots are
		// still matched by key, so the extra modules contribute nothing.
		if !owner.References(app.FullName) {
			continue
		}
		modules = append(modules, TestModule{
			Package:      d.pkg,
			Dir:          d.dir,
			Module:       owner.ModulePath(),
			Requires:     owner.Requires(),
			ContentRoots: d.roots,
		})
	}

	span.AddField("modules", len(modules))
	return modules
}

// ownerOf returns the module owning the package in dir.
func ownerOf(cache map[string]*Manifest, dir string) (*Manifest, error) {
	if m, ok := cache[dir]; ok {
		return m, nil
	}
	m, err := LoadManifest(dir)
	if err != nil {
		return nil, err
	}
	cache[dir] = m
	return m, nil
}
