package plugins

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"gopkg.in/yaml.v3"
)

// Go manifest files are interpreted, never compiled in: the file declares
//
//	func ModuleManifests() ([]map[string]any, error)
//
// and each returned map becomes one manifest. Interpreted code supplies
// metadata only; behavior always comes from compiled factories.
const goManifestFuncName = "ModuleManifests"

// loadGoManifests evaluates one Go source file and collects the manifests it
// declares.
func loadGoManifests(path string) ([]ManifestFile, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(code))) == 0 {
		return nil, fmt.Errorf("file is empty")
	}
	i := interp.New(interp.Options{})
	i.Use(stdlib.Symbols)
	if _, err := i.EvalPath(path); err != nil {
		return nil, fmt.Errorf("interpret: %w", err)
	}
	v, err := i.Eval(goManifestFuncName)
	if err != nil {
		return nil, fmt.Errorf("must define %s() ([]map[string]any, error): %w", goManifestFuncName, err)
	}
	raw, err := callManifestFunc(v)
	if err != nil {
		return nil, err
	}
	files := make([]ManifestFile, 0, len(raw))
	for idx, entry := range raw {
		m, err := manifestFromMap(entry)
		if err != nil {
			return nil, fmt.Errorf("manifest %d: %w", idx+1, err)
		}
		files = append(files, ManifestFile{Manifest: m, Path: fmt.Sprintf("%s#%d", path, idx+1)})
	}
	return files, nil
}

// callManifestFunc invokes the declared manifest function. The exact
// signature gets a direct call; looser shapes (a bare slice return, untyped
// slice elements) are walked reflectively so hand-written manifest files
// don't have to be signature-perfect.
func callManifestFunc(v reflect.Value) ([]map[string]any, error) {
	if !v.IsValid() || v.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a function", goManifestFuncName)
	}
	if fn, ok := v.Interface().(func() ([]map[string]any, error)); ok {
		return fn()
	}
	results := v.Call(nil)
	if len(results) == 0 || len(results) > 2 {
		return nil, fmt.Errorf("%s must return ([]map[string]any[, error])", goManifestFuncName)
	}
	if len(results) == 2 && !results[1].IsNil() {
		if e, ok := results[1].Interface().(error); ok && e != nil {
			return nil, e
		}
		return nil, fmt.Errorf("%s returned a non-error second value", goManifestFuncName)
	}
	slice := results[0]
	if slice.Kind() != reflect.Slice {
		return nil, fmt.Errorf("%s must return []map[string]any", goManifestFuncName)
	}
	raw := make([]map[string]any, slice.Len())
	for i := 0; i < slice.Len(); i++ {
		entry, ok := slice.Index(i).Interface().(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s[%d] is not map[string]any", goManifestFuncName, i)
		}
		raw[i] = entry
	}
	return raw, nil
}

// manifestFromMap roundtrips a declared map through YAML so map-declared
// manifests share the decode and validation path with file-based ones.
func manifestFromMap(entry map[string]any) (Manifest, error) {
	payload, err := yaml.Marshal(entry)
	if err != nil {
		return Manifest{}, err
	}
	return ParseManifestYAML(payload)
}
