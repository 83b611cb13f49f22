package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/assetpack/internal/assemble"
	"github.com/wolfeidau/assetpack/internal/bundle"
	"github.com/wolfeidau/assetpack/internal/bundler"
	"github.com/wolfeidau/assetpack/internal/dispatch"
	"github.com/wolfeidau/assetpack/internal/logger"
	"github.com/wolfeidau/assetpack/internal/rules"
	"github.com/wolfeidau/assetpack/internal/settings"
)

type Globals struct {
	Debug   bool
	Version string
}

// PackCmd is the whole command line: one optional mode argument and flags.
type PackCmd struct {
	Mode    string           `arg:"" optional:"" help:"build or serve, anything else does nothing."`
	Dir     string           `help:"project directory" default:"." type:"path"`
	NodeEnv string           `help:"production selects the production flavor" env:"NODE_ENV" default:"" hidden:""`
	Lenient bool             `help:"print failures and exit 0 instead of failing"`
	Debug   bool             `help:"Enable debug mode."`
	Version kong.VersionFlag `help:"Show version."`

	stdout      io.Writer
	stderr      io.Writer
	newCompiler func(bundle.Config) (dispatch.Compiler, error)
}

// Production reports whether the production flavor is selected.
func (c *PackCmd) Production() bool {
	return c.NodeEnv == "production"
}

func (c *PackCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	mode := bundle.ParseMode(c.Mode)
	production := c.Production()

	s, err := settings.ResolveProject(c.Dir)
	if err != nil {
		return fmt.Errorf("failed to resolve settings: %w", err)
	}

	cfg := assemble.New(bundler.NodeResolver{}, log).Assemble(s, rules.Build(s, production), mode, production)

	log.Debug().
		Str("version", globals.Version).
		Str("mode", mode.String()).
		Bool("production", production).
		Str("config_file", s.ConfigFile).
		Msg("Configuration assembled")

	return c.dispatcher(s, log).Dispatch(ctx, mode, s, cfg)
}

func (c *PackCmd) dispatcher(s settings.Settings, log zerolog.Logger) *dispatch.Dispatcher {
	d := &dispatch.Dispatcher{
		NewCompiler: c.newCompiler,
		Stdout:      c.stdout,
		Stderr:      c.stderr,
		Lenient:     c.Lenient,
		Log:         log,
	}
	if d.NewCompiler == nil {
		d.NewCompiler = dispatch.NewCompiler(s.SassBinary, log)
	}
	if d.Stdout == nil {
		d.Stdout = os.Stdout
		d.Color = isatty.IsTerminal(os.Stdout.Fd())
	}
	if d.Stderr == nil {
		d.Stderr = os.Stderr
	}
	return d
}
