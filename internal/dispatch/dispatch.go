package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/assetpack/internal/bundle"
	"github.com/wolfeidau/assetpack/internal/bundler"
	"github.com/wolfeidau/assetpack/internal/devserver"
	"github.com/wolfeidau/assetpack/internal/settings"
)

// Compiler is a bundler instance for one configuration.
type Compiler interface {
	Run(done func(*bundler.Stats, error))
	devserver.Watcher
}

// NewCompiler returns the esbuild backed compiler.
func NewCompiler(sassBinary string, log zerolog.Logger) func(bundle.Config) (Compiler, error) {
	return func(cfg bundle.Config) (Compiler, error) {
		c, err := bundler.New(cfg, bundler.WithLogger(log), bundler.WithSassBinary(sassBinary))
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Dispatcher runs the selected mode against an assembled configuration.
type Dispatcher struct {
	NewCompiler func(bundle.Config) (Compiler, error)
	Stdout      io.Writer
	Stderr      io.Writer
	// Lenient reports failures without returning them.
	Lenient bool
	Color   bool
	Log     zerolog.Logger
}

// Dispatch builds once, serves until ctx is done or does nothing, depending
// on mode.
func (d *Dispatcher) Dispatch(ctx context.Context, mode bundle.Mode, s settings.Settings, cfg bundle.Config) error {
	switch mode {
	case bundle.ModeBuild:
		return d.build(ctx, cfg)
	case bundle.ModeServe:
		return d.serve(ctx, s, cfg)
	default:
		return nil
	}
}

type result struct {
	stats *bundler.Stats
	err   error
}

func (d *Dispatcher) build(ctx context.Context, cfg bundle.Config) error {
	c, err := d.NewCompiler(cfg)
	if err != nil {
		return d.fail(err)
	}

	done := make(chan result, 1)
	c.Run(func(stats *bundler.Stats, err error) {
		done <- result{stats: stats, err: err}
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-done:
		if res.err != nil {
			return d.fail(res.err)
		}
		fmt.Fprint(d.Stdout, res.stats.Summary(d.Color))
		return nil
	}
}

func (d *Dispatcher) serve(ctx context.Context, s settings.Settings, cfg bundle.Config) error {
	c, err := d.NewCompiler(cfg)
	if err != nil {
		return d.fail(err)
	}

	var opts []devserver.Option
	if s.ConfigFile != "" {
		opts = append(opts, devserver.WithConfigFile(s.ConfigFile))
	}
	srv := devserver.New(c, d.Log, opts...)

	if err := srv.Listen(s.ServeHost, s.ServePort); err != nil {
		return d.fail(err)
	}

	fmt.Fprintf(d.Stdout, "Listening on %s\n", srv.Addr())
	fmt.Fprintf(d.Stdout, "Serving at %s\n", s.ServeURL())
	fmt.Fprintln(d.Stdout, "Building bundle...")

	if err := srv.Serve(ctx); err != nil {
		return d.fail(err)
	}
	return nil
}

// fail prints err with any bundler details to Stderr.
func (d *Dispatcher) fail(err error) error {
	var bundlerErr *bundler.BundlerError
	if errors.As(err, &bundlerErr) {
		fmt.Fprintln(d.Stderr, bundlerErr.Message)
		for _, detail := range bundlerErr.Details {
			fmt.Fprint(d.Stderr, detail)
		}
	} else {
		fmt.Fprintln(d.Stderr, err)
	}

	if d.Lenient {
		return nil
	}
	return err
}
