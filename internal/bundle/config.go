package bundle

import (
	"maps"
	"slices"
)

// Plugin names understood by the bundler adapter. Without hmr the hot runtime
// entries are dropped; without extract-css extract steps inject styles.
const (
	PluginDefine       = "define"
	PluginHTML         = "html"
	PluginHTMLHarddisk = "html-harddisk"
	PluginExtractCSS   = "extract-css"
	PluginMinify       = "minify"
	PluginHMR          = "hmr"
)

// Loader names used in rule chains.
const (
	LoaderJSX     = "jsx"
	LoaderStyle   = "style"
	LoaderExtract = "extract"
	LoaderCSS     = "css"
	LoaderSass    = "sass"
	LoaderFile    = "file"
	LoaderURL     = "url"
)

// Config is the bundler configuration handed to the bundler adapter.
//
// It is treated as a value: assembly steps receive a copy and return a new
// one. Use Clone before changing slices or maps in place.
type Config struct {
	Target     string   `cty:"target" json:"target"`
	Devtool    string   `cty:"devtool" json:"devtool"`
	Context    string   `cty:"context" json:"context"`
	Entry      []string `cty:"entry" json:"entry"`
	Output     Output   `cty:"output" json:"output"`
	Rules      []Rule   `cty:"rules" json:"rules"`
	Plugins    []Plugin `cty:"plugins" json:"plugins"`
	Extensions []string `cty:"extensions" json:"extensions"`
	Bail       bool     `cty:"bail" json:"bail"`
}

// Output describes where and how bundles are emitted.
type Output struct {
	Path          string `cty:"path" json:"path"`
	Filename      string `cty:"filename" json:"filename"`
	ChunkFilename string `cty:"chunk_filename" json:"chunkFilename"`
	PublicPath    string `cty:"public_path" json:"publicPath"`
}

// Rule maps files matching Test to an ordered chain of transform steps.
type Rule struct {
	Kind    string `cty:"kind" json:"kind"`
	Test    string `cty:"test" json:"test"`
	Exclude string `cty:"exclude" json:"exclude,omitempty"`
	Use     []Step `cty:"use" json:"use"`
}

// Step is one transform in a rule chain.
type Step struct {
	Loader  string            `cty:"loader" json:"loader"`
	Options map[string]string `cty:"options" json:"options,omitempty"`
}

// Plugin is a bundler plugin descriptor.
type Plugin struct {
	Name    string            `cty:"name" json:"name"`
	Options map[string]string `cty:"options" json:"options,omitempty"`
}

// Postprocess is the final user supplied transform over an assembled
// configuration. It returns the replacement and true, or false to keep the
// configuration it was given. The replacement is trusted as is.
type Postprocess func(Config) (Config, bool)

// Clone returns a deep copy of the configuration.
func (c Config) Clone() Config {
	out := c
	out.Entry = slices.Clone(c.Entry)
	out.Extensions = slices.Clone(c.Extensions)

	if c.Rules != nil {
		out.Rules = make([]Rule, len(c.Rules))
		for i, r := range c.Rules {
			out.Rules[i] = r.Clone()
		}
	}

	if c.Plugins != nil {
		out.Plugins = make([]Plugin, len(c.Plugins))
		for i, p := range c.Plugins {
			out.Plugins[i] = Plugin{Name: p.Name, Options: maps.Clone(p.Options)}
		}
	}

	return out
}

// Clone returns a deep copy of the rule.
func (r Rule) Clone() Rule {
	out := r
	if r.Use != nil {
		out.Use = make([]Step, len(r.Use))
		for i, s := range r.Use {
			out.Use[i] = Step{Loader: s.Loader, Options: maps.Clone(s.Options)}
		}
	}
	return out
}

// Loaders returns the loader names of the chain in order.
func (r Rule) Loaders() []string {
	names := make([]string, 0, len(r.Use))
	for _, s := range r.Use {
		names = append(names, s.Loader)
	}
	return names
}

// Step returns the first step using the named loader.
func (r Rule) Step(loader string) (Step, bool) {
	for _, s := range r.Use {
		if s.Loader == loader {
			return s, true
		}
	}
	return Step{}, false
}

// Plugin returns the first plugin with the given name.
func (c Config) Plugin(name string) (Plugin, bool) {
	for _, p := range c.Plugins {
		if p.Name == name {
			return p, true
		}
	}
	return Plugin{}, false
}

// HasPlugin reports whether a plugin with the given name is configured.
func (c Config) HasPlugin(name string) bool {
	_, ok := c.Plugin(name)
	return ok
}

// Defines merges the options of every define plugin in order.
func (c Config) Defines() map[string]string {
	defines := map[string]string{}
	for _, p := range c.Plugins {
		if p.Name == PluginDefine {
			maps.Copy(defines, p.Options)
		}
	}
	return defines
}

// CountPlugins returns how many plugins carry the given name.
func (c Config) CountPlugins(name string) int {
	n := 0
	for _, p := range c.Plugins {
		if p.Name == name {
			n++
		}
	}
	return n
}

// IsZero reports whether the configuration carries no values at all.
func (c Config) IsZero() bool {
	return c.Target == "" && c.Devtool == "" && c.Context == "" &&
		len(c.Entry) == 0 && c.Output == (Output{}) && len(c.Rules) == 0 &&
		len(c.Plugins) == 0 && len(c.Extensions) == 0 && !c.Bail
}
