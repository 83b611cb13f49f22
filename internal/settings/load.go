package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ConfigFiles are the override file names looked up in the project dir, in order.
var ConfigFiles = []string{"build.config.hcl", "build.config.yaml", "build.config.yml"}

// ConfigError is returned when a project file exists but cannot be read,
// parsed or evaluated.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid project config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// FindConfigFile returns the override file of the project in dir. Absence is
// not an error.
func FindConfigFile(dir string) (string, bool, error) {
	for _, name := range ConfigFiles {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return "", false, &ConfigError{Path: path, Err: err}
		}
		if info.IsDir() {
			return "", false, &ConfigError{Path: path, Err: errors.New("is a directory")}
		}
		return path, true, nil
	}
	return "", false, nil
}

// Load reads the override file of the project in dir. It returns nil when the
// project has none.
func Load(dir string) (*Override, error) {
	return load(dir, nil)
}

// load parses the override file, reading package.json for the HCL evaluation
// context only when pkg is nil.
func load(dir string, pkg *packageJSON) (*Override, error) {
	path, ok, err := FindConfigFile(dir)
	if err != nil || !ok {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	var override *Override
	switch filepath.Ext(path) {
	case ".hcl":
		if pkg == nil {
			read, err := readPackage(dir)
			if err != nil {
				return nil, err
			}
			pkg = &read
		}
		override, err = parseHCL(path, data, evalContext(dir, *pkg))
		if err != nil {
			return nil, &ConfigError{Path: path, Err: err}
		}
	default:
		override, err = parseYAML(data)
		if err != nil {
			return nil, &ConfigError{Path: path, Err: err}
		}
	}

	override.Source = path
	return override, nil
}

type packageJSON struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func readPackage(dir string) (packageJSON, error) {
	var pkg packageJSON

	path := filepath.Join(dir, "package.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return pkg, nil
		}
		return pkg, &ConfigError{Path: path, Err: err}
	}

	if err := json.Unmarshal(data, &pkg); err != nil {
		return pkg, &ConfigError{Path: path, Err: err}
	}

	return pkg, nil
}
