package workertest

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"

	"github.com/circleci/workerhost/o11y"
)

const defaultMarker = manifestName

// fallbackRoot configures the walk up from the base directory. An empty
// relativePath means the worker's path within the module found by the walk.
type fallbackRoot struct {
	relativePath string
	marker       string
}

// locateContentRoot prefers a matching ContentRoot declaration whose marker
// exists, then falls back to walking up from baseDir to the nearest directory
// holding the fallback marker.
func locateContentRoot(ctx context.Context, app Application, baseDir string, modules []TestModule,
	fallback fallbackRoot) (root string, err error) {

	if abs, err := filepath.Abs(baseDir); err == nil {
		baseDir = abs
	}

	ctx, span := o11y.StartSpan(ctx, "workertest: locate content root")
	defer o11y.End(span, &err)
	span.AddField("application", app.FullName)
	span.AddField("base_dir", baseDir)

	if root, ok := fromDeclarations(app, baseDir, modules); ok {
		span.AddField("source", "declaration")
		span.AddField("content_root", root)
		return root, nil
	}

	root, err = fromAncestors(app, baseDir, fallback)
	if err != nil {
		return "", err
	}
	span.AddField("source", "ancestor")
	span.AddField("content_root", root)
	o11y.Log(ctx, "workertest: content root found by walking up", o11y.Field("content_root", root))
	return root, nil
}

func fromDeclarations(app Application, baseDir string, modules []TestModule) (string, bool) {
	type candidate struct {
		ContentRoot
		relativeTo string
	}
	var candidates []candidate
	for _, m := range modules {
		relativeTo := baseDir
		if filepath.IsAbs(m.Dir) {
			relativeTo = m.Dir
		}
		for _, r := range m.ContentRoots {
			if strings.EqualFold(r.Key, app.Name) || strings.EqualFold(r.Key, app.FullName) {
				candidates = append(candidates, candidate{ContentRoot: r, relativeTo: relativeTo})
			}
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority < candidates[j].Priority
	})

	for _, c := range candidates {
		dir := c.Path
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(c.relativeTo, dir)
		}
		check := dir
		if c.Marker != "" {
			check = filepath.Join(dir, filepath.Base(c.Marker))
		}
		if fileExists(check) {
			return filepath.Clean(dir), true
		}
	}
	return "", false
}

func fromAncestors(app Application, baseDir string, fallback fallbackRoot) (string, error) {
	marker := fallback.marker
	if marker == "" {
		marker = defaultMarker
	}

	for dir := baseDir; ; dir = filepath.Dir(dir) {
		if containsMatch(dir, marker) {
			rel := fallback.relativePath
			if rel == "" {
				rel = relativeToModule(app, dir)
			}
			return filepath.Join(dir, rel), nil
		}
		if filepath.Dir(dir) == dir {
			return "", &ContentRootResolutionError{
				Application: app.FullName,
				BaseDir:     baseDir,
				Marker:      marker,
			}
		}
	}
}

// relativeToModule is the worker's directory within the module rooted at dir,
// or just its name when dir is not a module root or does not contain it.
func relativeToModule(app Application, dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		return app.Name
	}
	modPath := modfile.ModulePath(data)
	switch {
	case modPath == "":
		return app.Name
	case app.FullName == modPath:
		return "."
	case strings.HasPrefix(app.FullName, modPath+"/"):
		return filepath.FromSlash(strings.TrimPrefix(app.FullName, modPath+"/"))
	}
	return app.Name
}

// containsMatch reports whether dir holds an entry whose name matches the
// pattern. Only names are matched, so dir itself may contain glob characters.
func containsMatch(dir, pattern string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if ok, _ := filepath.Match(pattern, e.Name()); ok {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
