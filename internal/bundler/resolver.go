package bundler

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// NodeResolver finds packages the way node does, walking node_modules
// directories upwards from the starting directory.
type NodeResolver struct{}

func (NodeResolver) Resolve(module, dir string) (string, bool) {
	for {
		base := filepath.Join(dir, "node_modules", filepath.FromSlash(module))
		if file, ok := resolveFile(base); ok {
			return file, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func resolveFile(base string) (string, bool) {
	for _, candidate := range []string{base, base + ".js"} {
		if isFile(candidate) {
			return candidate, true
		}
	}

	if main, ok := packageMain(base); ok {
		if target := filepath.Join(base, main); target != base {
			if file, ok := resolveFile(target); ok {
				return file, true
			}
		}
	}

	index := filepath.Join(base, "index.js")
	if isFile(index) {
		return index, true
	}
	return "", false
}

func packageMain(dir string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(dir, "package.json")) // #nosec G304
	if err != nil {
		return "", false
	}
	var pkg struct {
		Main string `json:"main"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil || pkg.Main == "" {
		return "", false
	}
	return filepath.FromSlash(pkg.Main), true
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
