package bundler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/assetpack/internal/bundle"
)

// Compiler runs esbuild for one assembled configuration.
type Compiler struct {
	cfg  bundle.Config
	opts api.BuildOptions
	sass *sassCompiler
	html *htmlPage
	log  zerolog.Logger
}

// Option configures a Compiler.
type Option func(*compilerOptions)

type compilerOptions struct {
	log        zerolog.Logger
	sassBinary string
}

// WithLogger sets the logger used for bundler and dart-sass diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(o *compilerOptions) { o.log = log }
}

// WithSassBinary sets the dart-sass embedded binary, empty searches PATH.
func WithSassBinary(path string) Option {
	return func(o *compilerOptions) { o.sassBinary = path }
}

// New validates the configuration and prepares a compiler for it.
func New(cfg bundle.Config, options ...Option) (*Compiler, error) {
	o := compilerOptions{log: zerolog.Nop()}
	for _, opt := range options {
		opt(&o)
	}

	sass := newSassCompiler(o.sassBinary, o.log)

	plugins := []api.Plugin{entryPlugin(cfg)}
	if cfg.HasPlugin(bundle.PluginHMR) {
		plugins = append(plugins, runtimePlugin(cfg))
	}
	plugins = append(plugins, rulesPlugin(cfg, sass))

	opts, err := Options(cfg, plugins...)
	if err != nil {
		return nil, fmt.Errorf("failed to translate configuration: %w", err)
	}

	html, err := newHTMLPage(cfg)
	if err != nil {
		return nil, err
	}

	return &Compiler{cfg: cfg, opts: opts, sass: sass, html: html, log: o.log}, nil
}

// Run builds once in the background, writes every output under the output
// path and then calls done.
func (c *Compiler) Run(done func(*Stats, error)) {
	go func() {
		defer c.closeSass()

		start := time.Now()
		result := api.Build(c.opts)
		stats, err := c.emit(result, time.Since(start), true)
		done(stats, err)
	}()
}

// Watch builds, then rebuilds whenever an input changes until ctx is done.
// onStart is called before each build and onBuild after it. Outputs stay in
// memory except for a page forced to disk.
func (c *Compiler) Watch(ctx context.Context, onStart func(), onBuild func(*Stats, error)) error {
	defer c.closeSass()

	var start time.Time
	opts := c.opts
	opts.Plugins = append(append([]api.Plugin{}, c.opts.Plugins...), api.Plugin{
		Name: "assetpack-watch",
		Setup: func(build api.PluginBuild) {
			build.OnStart(func() (api.OnStartResult, error) {
				start = time.Now()
				if onStart != nil {
					onStart()
				}
				return api.OnStartResult{}, nil
			})
			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				stats, err := c.emit(*result, time.Since(start), false)
				onBuild(stats, err)
				return api.OnEndResult{}, nil
			})
		},
	})

	bctx, cerr := api.Context(opts)
	if cerr != nil {
		return newBundlerError(cerr.Errors)
	}
	defer bctx.Dispose()

	if err := bctx.Watch(api.WatchOptions{}); err != nil {
		return fmt.Errorf("failed to watch: %w", err)
	}

	<-ctx.Done()
	return nil
}

func (c *Compiler) closeSass() {
	if err := c.sass.Close(); err != nil {
		c.log.Warn().Err(err).Msg("Failed to stop dart-sass")
	}
}

func (c *Compiler) emit(result api.BuildResult, took time.Duration, write bool) (*Stats, error) {
	stats := &Stats{
		Duration:  took,
		Errors:    result.Errors,
		Warnings:  result.Warnings,
		Metafile:  result.Metafile,
		OutputDir: c.outDir(),
	}

	for _, w := range result.Warnings {
		c.log.Debug().Str("warning", w.Text).Msg("Build warning")
	}

	if len(result.Errors) > 0 {
		return stats, newBundlerError(result.Errors)
	}

	for _, f := range result.OutputFiles {
		stats.Files = append(stats.Files, File{Path: c.relative(f.Path), Contents: f.Contents, Hash: f.Hash})
	}

	if c.html != nil {
		page, err := c.html.Render(result.Metafile)
		if err != nil {
			return stats, err
		}
		file := File{Path: c.html.filename, Contents: page, Hash: contentHash(page)}
		stats.Files = append(stats.Files, file)

		if !write && c.html.harddisk {
			if err := c.writeFile(file); err != nil {
				return stats, err
			}
		}
	}

	stats.Hash = buildHash(stats.Files)

	if write {
		for _, f := range stats.Files {
			if err := c.writeFile(f); err != nil {
				return stats, err
			}
		}
	}

	return stats, nil
}

func (c *Compiler) writeFile(f File) error {
	target := filepath.Join(c.outDir(), filepath.FromSlash(f.Path))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	// #nosec G306 -- bundles are served to browsers
	if err := os.WriteFile(target, f.Contents, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return nil
}

func (c *Compiler) outDir() string {
	if c.cfg.Output.Path != "" {
		return c.cfg.Output.Path
	}
	if c.cfg.Context != "" {
		return c.cfg.Context
	}
	wd, _ := os.Getwd()
	return wd
}

func (c *Compiler) relative(path string) string {
	rel, err := filepath.Rel(c.outDir(), path)
	if err != nil {
		return filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}
