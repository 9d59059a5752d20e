package workertest

import (
	"errors"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
	"gotest.tools/v3/fs"
)

const testsGoMod = `module example.com/calctests

go 1.22

require (
	example.com/calc v1.2.0
	github.com/stretchr/testify v1.10.0
)
`

func TestLoadManifest_Nearest(t *testing.T) {
	dir := fs.NewDir(t, "manifest",
		fs.WithFile("go.mod", "module example.com/outer\n"),
		fs.WithDir("inner",
			fs.WithFile("go.mod", testsGoMod),
			fs.WithDir("pkg", fs.WithDir("deep")),
		),
	)

	m, err := LoadManifest(dir.Join("inner", "pkg", "deep"))
	assert.Assert(t, err)
	assert.Check(t, cmp.Equal(m.Path, dir.Join("inner", "go.mod")))
	assert.Check(t, cmp.Equal(m.Dir(), dir.Join("inner")))
	assert.Check(t, cmp.Equal(m.ModulePath(), "example.com/calctests"))
	assert.Check(t, cmp.DeepEqual(m.Requires(), []string{"example.com/calc", "github.com/stretchr/testify"}))
}

func TestManifest_References(t *testing.T) {
	dir := fs.NewDir(t, "manifest", fs.WithFile("go.mod", testsGoMod))
	m, err := LoadManifest(dir.Path())
	assert.Assert(t, err)

	assert.Check(t, m.Contains("example.com/calctests/plus"))
	assert.Check(t, !m.Contains("example.com/calctestsuite"))
	assert.Check(t, m.References("example.com/calc/worker"))
	assert.Check(t, m.References("example.com/calctests"))
	assert.Check(t, !m.References("example.com/other"))
	assert.Check(t, cmp.Equal(m.moduleOf("example.com/calc/worker"), "example.com/calc"))
	assert.Check(t, cmp.Equal(m.moduleOf("example.com/nope"), ""))
}

func TestLoadManifest_Missing(t *testing.T) {
	dir := fs.NewDir(t, "no-manifest")

	_, err := LoadManifest(dir.Path())

	var manifestErr *DependencyManifestError
	assert.Assert(t, errors.As(err, &manifestErr))
	assert.Check(t, cmp.Equal(manifestErr.Dir, dir.Path()))
	assert.Check(t, cmp.ErrorContains(err, "no go.mod found in "+dir.Path()))
	assert.Check(t, cmp.ErrorContains(err, "run the tests with 'go test'"))
	assert.Check(t, cmp.ErrorContains(err, "go env GOMOD"))
}

func TestLoadManifest_Invalid(t *testing.T) {
	dir := fs.NewDir(t, "manifest", fs.WithFile("go.mod", "go 1.22\n"))

	_, err := LoadManifest(dir.Path())

	var manifestErr *DependencyManifestError
	assert.Assert(t, errors.As(err, &manifestErr))
	assert.Check(t, cmp.ErrorContains(err, "no module directive"))
	assert.Check(t, manifestErr.Err != nil)
}

func TestLoadManifest_RelativeDir(t *testing.T) {
	m, err := LoadManifest(".")
	assert.Assert(t, err)
	assert.Check(t, cmp.Equal(m.ModulePath(), "github.com/circleci/workerhost"))
	assert.Check(t, cmp.Equal(filepath.Base(m.Path), "go.mod"))
}
