// Package loader discovers and loads compiled benchmark plugins. Go
// has no runtime source interpreter, so a benchmark file is a Go
// plugin (foo_bench.so, built ahead of time with
// `go build -buildmode=plugin`) exporting a `Spec describe.Spec`
// symbol and a `BenchABI string` symbol the loader checks against its
// own ABI before handing the Spec to the runner.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"

	"github.com/Masterminds/semver/v3"

	"github.com/ja7ad/microbench/pkg/describe"
	"github.com/ja7ad/microbench/pkg/errs"
)

// BenchABI is this build's plugin ABI version. Benchmark plugins
// export their own BenchABI symbol, checked for compatibility before
// the plugin's Spec symbol is trusted.
const BenchABI = "1.0.0"

// FilePattern is the suffix benchmark plugin files must carry.
const FilePattern = "_bench.so"

// Loaded pairs a discovered file path with its loaded Spec, or the
// error that occurred loading it.
type Loaded struct {
	Path string
	Spec describe.Spec
	Err  error
}

// Discover walks root (a file or directory) collecting paths matching
// FilePattern. A bare file path that itself matches is returned as a
// single-element slice regardless of its parent directory contents.
func Discover(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errs.New(errs.InvalidArgument, "stat %s: %v", root, err)
	}

	if !info.IsDir() {
		if !matches(root) {
			return nil, errs.New(errs.InvalidArgument, "%s does not match %s", root, FilePattern)
		}
		return []string{root}, nil
	}

	var found []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && matches(path) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, errs.New(errs.InvalidArgument, "walk %s: %v", root, err)
	}
	return found, nil
}

func matches(path string) bool {
	return filepath.Ext(path) == ".so" && len(path) > len(FilePattern) &&
		path[len(path)-len(FilePattern):] == FilePattern
}

// Load opens one plugin file in isolation, returning its Spec. A
// plugin.Open failure, a missing/incompatible BenchABI, or a missing
// Spec symbol are all reported as an InvalidArgument error scoped to
// this one file; they never abort a sibling file's load.
func Load(path string) Loaded {
	p, err := plugin.Open(path)
	if err != nil {
		return Loaded{Path: path, Err: errs.New(errs.InvalidArgument, "open %s: %v", path, err)}
	}

	if err := checkABI(p, path); err != nil {
		return Loaded{Path: path, Err: err}
	}

	sym, err := p.Lookup("Spec")
	if err != nil {
		return Loaded{Path: path, Err: errs.New(errs.InvalidArgument, "%s: missing Spec symbol: %v", path, err)}
	}
	spec, ok := sym.(*describe.Spec)
	if !ok {
		return Loaded{Path: path, Err: errs.New(errs.InvalidArgument, "%s: Spec symbol has unexpected type", path)}
	}
	return Loaded{Path: path, Spec: *spec}
}

func checkABI(p *plugin.Plugin, path string) error {
	sym, err := p.Lookup("BenchABI")
	if err != nil {
		return errs.New(errs.InvalidArgument, "%s: missing BenchABI symbol: %v", path, err)
	}
	abiPtr, ok := sym.(*string)
	if !ok {
		return errs.New(errs.InvalidArgument, "%s: BenchABI symbol has unexpected type", path)
	}

	want, err := semver.NewVersion(BenchABI)
	if err != nil {
		return errs.New(errs.InvalidArgument, "internal: invalid host ABI %q: %v", BenchABI, err)
	}
	got, err := semver.NewVersion(*abiPtr)
	if err != nil {
		return errs.New(errs.InvalidArgument, "%s: invalid plugin ABI %q: %v", path, *abiPtr, err)
	}
	if got.Major() != want.Major() {
		return errs.New(errs.InvalidArgument,
			"%s: plugin ABI %s is incompatible with host ABI %s", path, got, want)
	}
	return nil
}

// LoadAll discovers and loads every matching file under root, loading
// each in isolation so that one file's failure does not prevent the
// others from loading.
func LoadAll(root string) ([]Loaded, error) {
	paths, err := Discover(root)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no benchmark files found under %s", root)
	}
	results := make([]Loaded, 0, len(paths))
	for _, p := range paths {
		results = append(results, Load(p))
	}
	return results, nil
}
