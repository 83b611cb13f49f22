package bundler

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/godartsass/v2"
	"github.com/rs/zerolog"
)

// sassCompiler starts the dart-sass embedded process on first use and keeps it
// for the lifetime of the compiler.
type sassCompiler struct {
	binary string
	log    zerolog.Logger

	once       sync.Once
	transpiler *godartsass.Transpiler
	err        error
}

func newSassCompiler(binary string, log zerolog.Logger) *sassCompiler {
	return &sassCompiler{binary: binary, log: log}
}

func (s *sassCompiler) start() (*godartsass.Transpiler, error) {
	s.once.Do(func() {
		s.transpiler, s.err = godartsass.Start(godartsass.Options{
			DartSassEmbeddedFilename: s.binary,
			Timeout:                  30 * time.Second,
			LogEventHandler: func(e godartsass.LogEvent) {
				if e.Type == godartsass.LogEventTypeDebug {
					s.log.Debug().Msg(e.Message)
					return
				}
				s.log.Warn().Str("deprecation", e.DeprecationType).Msg(e.Message)
			},
		})
		if s.err != nil {
			s.err = fmt.Errorf("failed to start dart-sass: %w", s.err)
		}
	})
	return s.transpiler, s.err
}

// Compile transpiles a sass or scss source to CSS. style is "expanded" or
// "compressed".
func (s *sassCompiler) Compile(path, source, style string, includePaths []string) (string, error) {
	t, err := s.start()
	if err != nil {
		return "", err
	}

	syntax := godartsass.SourceSyntaxSCSS
	if filepath.Ext(path) == ".sass" {
		syntax = godartsass.SourceSyntaxSASS
	}

	output := godartsass.OutputStyleExpanded
	if style == "compressed" {
		output = godartsass.OutputStyleCompressed
	}

	res, err := t.Execute(godartsass.Args{
		Source:       source,
		URL:          "file://" + filepath.ToSlash(path),
		IncludePaths: includePaths,
		OutputStyle:  output,
		SourceSyntax: syntax,
	})
	if err != nil {
		return "", fmt.Errorf("failed to compile %s: %w", path, err)
	}

	return res.CSS, nil
}

func (s *sassCompiler) Close() error {
	if s.transpiler == nil {
		return nil
	}
	return s.transpiler.Close()
}
