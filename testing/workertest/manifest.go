package workertest

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
)

const manifestName = "go.mod"

// Manifest is a parsed go.mod.
type Manifest struct {
	Path string
	File *modfile.File
}

// LoadManifest parses the nearest go.mod at or above dir.
func LoadManifest(dir string) (*Manifest, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, &DependencyManifestError{Dir: dir, Err: err}
	}

	for d := abs; ; d = filepath.Dir(d) {
		path := filepath.Join(d, manifestName)
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			f, err := modfile.ParseLax(path, data, nil)
			if err != nil {
				return nil, &DependencyManifestError{Dir: abs, Err: err}
			}
			if f.Module == nil {
				return nil, &DependencyManifestError{Dir: abs, Err: errors.New(path + " has no module directive")}
			}
			return &Manifest{Path: path, File: f}, nil
		case !errors.Is(err, fs.ErrNotExist):
			return nil, &DependencyManifestError{Dir: abs, Err: err}
		}
		if filepath.Dir(d) == d {
			return nil, &DependencyManifestError{Dir: abs}
		}
	}
}

func (m *Manifest) Dir() string {
	return filepath.Dir(m.Path)
}

func (m *Manifest) ModulePath() string {
	return m.File.Module.Mod.Path
}

// Requires lists the module paths this module requires.
func (m *Manifest) Requires() []string {
	paths := make([]string, 0, len(m.File.Require))
	for _, r := range m.File.Require {
		paths = append(paths, r.Mod.Path)
	}
	return paths
}

// Contains reports whether pkg is a package of this module.
func (m *Manifest) Contains(pkg string) bool {
	return withinModule(m.ModulePath(), pkg)
}

// References reports whether the module contains or requires the module
// providing pkg.
func (m *Manifest) References(pkg string) bool {
	if m.Contains(pkg) {
		return true
	}
	for _, r := range m.File.Require {
		if withinModule(r.Mod.Path, pkg) {
			return true
		}
	}
	return false
}

// moduleOf returns the module, of this one and its requirements, that provides pkg.
func (m *Manifest) moduleOf(pkg string) string {
	best := ""
	for _, mod := range append([]string{m.ModulePath()}, m.Requires()...) {
		if withinModule(mod, pkg) && len(mod) > len(best) {
			best = mod
		}
	}
	return best
}

func withinModule(modPath, pkg string) bool {
	return pkg == modPath || strings.HasPrefix(pkg, modPath+"/")
}
