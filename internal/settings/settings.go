package settings

import (
	"fmt"
	"maps"
	"net"
	"path/filepath"
	"strconv"

	"github.com/wolfeidau/assetpack/internal/bundle"
)

const defaultTitle = "App"

// Settings are the resolved project settings. They are resolved once per run
// and not changed afterwards.
type Settings struct {
	// Absolute project root, all relative paths resolve against it
	ProjectDir string
	// Override file the settings were read from, empty when none was found
	ConfigFile string

	ServeHost    string
	ServePort    int
	ServePubHost string
	ServePubPort int

	// Identifier to JS expression, added to the bundler define table
	Globals    map[string]string
	Entrypoint string
	PublicPath string
	OutputDir  string
	Polyfill   bool
	IndexHTML  IndexHTML
	HTMLTitle  string

	// Byte cutoffs below which url assets are inlined as data URLs
	InlineLimit     int
	FontInlineLimit int
	// Hashed filename pattern for file assets
	AssetNames string
	// dart-sass embedded binary, empty to look it up on PATH
	SassBinary string

	Postprocess bundle.Postprocess
}

// IndexHTML enables the generated index page, optionally from a custom template.
type IndexHTML struct {
	Enabled  bool
	Template string
}

// Override holds the values a project override file sets. Nil fields are
// unspecified and keep their default.
type Override struct {
	Source string

	ServeHost       *string
	ServePort       *int
	ServePubHost    *string
	ServePubPort    *int
	Globals         map[string]string
	Entrypoint      *string
	PublicPath      *string
	OutputDir       *string
	Polyfill        *bool
	IndexHTML       *IndexHTML
	HTMLTitle       *string
	InlineLimit     *int
	FontInlineLimit *int
	AssetNames      *string
	SassBinary      *string
	Postprocess     bundle.Postprocess
}

// Defaults returns the built-in settings for the project in dir. The HTML
// title comes from the name in package.json when there is one.
func Defaults(dir string) (Settings, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to resolve project dir: %w", err)
	}

	pkg, err := readPackage(abs)
	if err != nil {
		return Settings{}, err
	}

	return builtin(abs, pkg), nil
}

func builtin(abs string, pkg packageJSON) Settings {
	title := pkg.Name
	if title == "" {
		title = defaultTitle
	}

	return Settings{
		ProjectDir:      abs,
		ServeHost:       "localhost",
		ServePort:       3000,
		ServePubHost:    "localhost",
		ServePubPort:    3000,
		Globals:         map[string]string{},
		Entrypoint:      "src/index.js",
		PublicPath:      "/static/",
		OutputDir:       "static/",
		Polyfill:        false,
		IndexHTML:       IndexHTML{Enabled: true},
		HTMLTitle:       title,
		InlineLimit:     10000,
		FontInlineLimit: 5000,
		AssetNames:      "[name].[hash]",
	}
}

// Resolve merges an optional override into the defaults. Every field the
// override sets wins; the public serve host and port follow the resolved serve
// host and port unless the override names them.
func Resolve(defaults Settings, override *Override) Settings {
	s := defaults
	s.Globals = maps.Clone(defaults.Globals)

	if override == nil {
		s.ServePubHost = s.ServeHost
		s.ServePubPort = s.ServePort
		return s
	}

	s.ConfigFile = override.Source
	set(&s.ServeHost, override.ServeHost)
	set(&s.ServePort, override.ServePort)
	set(&s.Entrypoint, override.Entrypoint)
	set(&s.PublicPath, override.PublicPath)
	set(&s.OutputDir, override.OutputDir)
	set(&s.Polyfill, override.Polyfill)
	set(&s.IndexHTML, override.IndexHTML)
	set(&s.HTMLTitle, override.HTMLTitle)
	set(&s.InlineLimit, override.InlineLimit)
	set(&s.FontInlineLimit, override.FontInlineLimit)
	set(&s.AssetNames, override.AssetNames)
	set(&s.SassBinary, override.SassBinary)

	if override.Globals != nil {
		s.Globals = maps.Clone(override.Globals)
	}
	if override.Postprocess != nil {
		s.Postprocess = override.Postprocess
	}

	s.ServePubHost = s.ServeHost
	s.ServePubPort = s.ServePort
	set(&s.ServePubHost, override.ServePubHost)
	set(&s.ServePubPort, override.ServePubPort)

	return s
}

// ResolveProject loads the override file of the project in dir, if any, and
// resolves it against the defaults.
func ResolveProject(dir string) (Settings, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to resolve project dir: %w", err)
	}

	pkg, err := readPackage(abs)
	if err != nil {
		return Settings{}, err
	}

	override, err := load(abs, &pkg)
	if err != nil {
		return Settings{}, err
	}

	return Resolve(builtin(abs, pkg), override), nil
}

// ServeURL is the externally reachable base URL of the development server.
func (s Settings) ServeURL() string {
	return fmt.Sprintf("http://%s/", net.JoinHostPort(s.ServePubHost, strconv.Itoa(s.ServePubPort)))
}

// ServeAddr is the address the development server binds.
func (s Settings) ServeAddr() string {
	return net.JoinHostPort(s.ServeHost, strconv.Itoa(s.ServePort))
}

// EntrypointFile is the absolute path of the entrypoint.
func (s Settings) EntrypointFile() string {
	return s.path(s.Entrypoint)
}

// OutputPath is the absolute output directory.
func (s Settings) OutputPath() string {
	return s.path(s.OutputDir)
}

// TemplatePath is the absolute path of the custom index template, or empty
// when the built-in template is used.
func (s Settings) TemplatePath() string {
	if s.IndexHTML.Template == "" {
		return ""
	}
	return s.path(s.IndexHTML.Template)
}

func (s Settings) path(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(s.ProjectDir, p)
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
