package assemble

import (
	"encoding/json"
	"maps"
	"net/url"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/assetpack/internal/bundle"
	"github.com/wolfeidau/assetpack/internal/settings"
)

// Synthetic and well known entry modules.
const (
	PolyfillModule        = "babel-polyfill"
	HotClientModule       = "assetpack/hot/client"
	HotOnlyModule         = "assetpack/hot/only-dev-server"
	StatePreservingModule = "react-hot-loader/patch"

	// HotPath is appended to the serve URL to reach the hot update stream.
	HotPath = "__assetpack_hmr"
)

// ModuleResolver finds a module the way the bundler would, starting at dir.
type ModuleResolver interface {
	Resolve(module, dir string) (string, bool)
}

// ResolverFunc adapts a function to ModuleResolver.
type ResolverFunc func(module, dir string) (string, bool)

func (f ResolverFunc) Resolve(module, dir string) (string, bool) {
	return f(module, dir)
}

// Step is one pure transform in the assembly sequence.
type Step func(bundle.Config) bundle.Config

// Assembler composes settings and a rule table into a bundler configuration.
type Assembler struct {
	Resolver ModuleResolver
	Log      zerolog.Logger
}

// New returns an assembler using the given resolver.
func New(resolver ModuleResolver, log zerolog.Logger) *Assembler {
	return &Assembler{Resolver: resolver, Log: log}
}

// Assemble runs every step in order and returns the final configuration.
func (a *Assembler) Assemble(s settings.Settings, rules []bundle.Rule, mode bundle.Mode, production bool) bundle.Config {
	var cfg bundle.Config
	for _, step := range a.Steps(s, rules, mode, production) {
		cfg = step(cfg)
	}
	return cfg
}

// Steps returns the ordered assembly sequence for the given inputs. The
// state preserving hot swap module is looked up here so the steps stay pure.
func (a *Assembler) Steps(s settings.Settings, rules []bundle.Rule, mode bundle.Mode, production bool) []Step {
	steps := []Step{Base(s, rules, production)}

	if s.Polyfill {
		steps = append(steps, Polyfill())
	}

	if s.IndexHTML.Enabled {
		steps = append(steps, IndexHTML(s.TemplatePath(), s.HTMLTitle))
	}

	if production {
		steps = append(steps, Production())
	}

	if mode == bundle.ModeServe {
		patch := a.statePreservingModule(s)
		steps = append(steps, Serve(s.ServeURL(), patch))
	}

	if s.Postprocess != nil {
		steps = append(steps, Postprocess(s.Postprocess))
	}

	return steps
}

func (a *Assembler) statePreservingModule(s settings.Settings) string {
	if a.Resolver != nil {
		if _, ok := a.Resolver.Resolve(StatePreservingModule, filepath.Dir(s.EntrypointFile())); ok {
			return StatePreservingModule
		}
	}

	a.Log.Warn().Str("module", StatePreservingModule).Msg("Did not add state preserving hot swap module to the entrypoint")
	return ""
}

// Base is the starting configuration: full source maps, web target and a
// single entry.
func Base(s settings.Settings, rules []bundle.Rule, production bool) Step {
	return func(bundle.Config) bundle.Config {
		table := make([]bundle.Rule, len(rules))
		for i, r := range rules {
			table[i] = r.Clone()
		}

		entry := s.EntrypointFile()

		return bundle.Config{
			Target:  "web",
			Devtool: "source-map",
			Context: filepath.Dir(entry),
			Entry:   []string{entry},
			Output: bundle.Output{
				Path:          s.OutputPath(),
				Filename:      "[name].[hash]",
				ChunkFilename: "[name].[hash]",
				PublicPath:    s.PublicPath,
			},
			Rules: table,
			Plugins: []bundle.Plugin{
				{Name: bundle.PluginDefine, Options: defines(s.Globals, production)},
			},
			Extensions: []string{".js", ".jsx"},
		}
	}
}

// Polyfill makes the polyfill runtime execute before application code.
func Polyfill() Step {
	return func(cfg bundle.Config) bundle.Config {
		cfg = cfg.Clone()
		cfg.Entry = prepend(cfg.Entry, PolyfillModule)
		return cfg
	}
}

// IndexHTML adds the page generator and its companion that forces the page to
// disk when the rest of the output stays in memory. An empty template selects
// the built-in one.
func IndexHTML(template, title string) Step {
	return func(cfg bundle.Config) bundle.Config {
		cfg = cfg.Clone()
		cfg.Plugins = prepend(cfg.Plugins, bundle.Plugin{Name: bundle.PluginHTMLHarddisk})
		cfg.Plugins = prepend(cfg.Plugins, bundle.Plugin{
			Name: bundle.PluginHTML,
			Options: map[string]string{
				"template":          template,
				"title":             title,
				"filename":          "index.html",
				"alwaysWriteToDisk": "true",
			},
		})
		return cfg
	}
}

// Production fails fast on transform errors, extracts stylesheets and
// minifies while keeping a separate source map.
func Production() Step {
	return func(cfg bundle.Config) bundle.Config {
		cfg = cfg.Clone()
		cfg.Bail = true
		cfg.Plugins = prepend(cfg.Plugins, bundle.Plugin{
			Name:    bundle.PluginExtractCSS,
			Options: map[string]string{"filename": "[name].[hash].css"},
		})
		cfg.Plugins = append(cfg.Plugins, bundle.Plugin{
			Name:    bundle.PluginMinify,
			Options: map[string]string{"comments": "false", "sourceMap": "true"},
		})
		return cfg
	}
}

// Serve points the output at the development server and adds the hot update
// runtime in front of the application. patch is the state preserving module,
// empty when it could not be resolved.
func Serve(serveURL, patch string) Step {
	return func(cfg bundle.Config) bundle.Config {
		cfg = cfg.Clone()
		cfg.Devtool = "source-map"
		cfg.Output.PublicPath = serveURL
		cfg.Plugins = prepend(cfg.Plugins, bundle.Plugin{Name: bundle.PluginHMR})
		cfg.Entry = prepend(cfg.Entry, HotOnlyModule)
		cfg.Entry = prepend(cfg.Entry, HotClientEntry(serveURL))
		if patch != "" {
			cfg.Entry = prepend(cfg.Entry, patch)
		}
		return cfg
	}
}

// Postprocess applies the user hook last. A non-empty result replaces the
// configuration wholesale.
func Postprocess(hook bundle.Postprocess) Step {
	return func(cfg bundle.Config) bundle.Config {
		if hook == nil {
			return cfg
		}
		if out, ok := hook(cfg.Clone()); ok {
			return out
		}
		return cfg
	}
}

// HotClientEntry is the hot client bootstrap module, parameterized with the
// update stream URL and reload-on-failure.
func HotClientEntry(serveURL string) string {
	q := url.Values{}
	q.Set("path", serveURL+HotPath)
	q.Set("reload", "true")
	return HotClientModule + "?" + q.Encode()
}

func defines(globals map[string]string, production bool) map[string]string {
	env := "development"
	if production {
		env = "production"
	}
	quoted, _ := json.Marshal(env)

	out := maps.Clone(globals)
	if out == nil {
		out = map[string]string{}
	}
	out["NODE_ENV"] = string(quoted)
	out["process.env.NODE_ENV"] = string(quoted)
	return out
}

func prepend[T any](s []T, v T) []T {
	return append([]T{v}, s...)
}
