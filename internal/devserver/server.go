package devserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/assetpack/internal/assemble"
	"github.com/wolfeidau/assetpack/internal/bundler"
	apphttp "github.com/wolfeidau/assetpack/internal/http"
	"golang.org/x/sync/errgroup"
)

// HotPath is where the hot update stream is mounted.
const HotPath = "/" + assemble.HotPath

var ErrNotListening = errors.New("server is not listening, call Listen first")

// Watcher rebuilds a bundle whenever its inputs change.
type Watcher interface {
	Watch(ctx context.Context, onStart func(), onBuild func(*bundler.Stats, error)) error
}

// ListenError reports a failure to bind the server address.
type ListenError struct {
	Addr string
	Err  error
}

func (e *ListenError) Error() string {
	return fmt.Sprintf("failed to listen on %s: %v", e.Addr, e.Err)
}

func (e *ListenError) Unwrap() error {
	return e.Err
}

// Server serves in-memory bundle output and hot updates while the compiler
// watches for changes.
type Server struct {
	compiler   Watcher
	store      *Memory
	hot        *HotMiddleware
	log        zerolog.Logger
	configFile string
	listener   net.Listener
}

// Option configures a Server.
type Option func(*Server)

// WithConfigFile watches the project override file and reports changes.
func WithConfigFile(path string) Option {
	return func(s *Server) { s.configFile = path }
}

// WithHeartbeat sets the websocket ping interval.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) { s.hot = NewHotMiddleware(s.log, d) }
}

func New(compiler Watcher, log zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		compiler: compiler,
		store:    NewMemory(),
		log:      log,
	}
	s.hot = NewHotMiddleware(log, defaultHeartbeat)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler mounts the hot update stream and the build output.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(HotPath, s.hot)
	mux.Handle("/", BuildMiddleware(s.store, s.log))
	return apphttp.ClientIPMiddleware()(mux)
}

// Listen binds the address so bind failures surface before serving starts.
func (s *Server) Listen(host string, port int) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return &ListenError{Addr: addr, Err: err}
	}
	s.listener = l
	return nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve runs the HTTP server and the watch loop until ctx is done or either
// fails.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return ErrNotListening
	}

	srv := configureHTTPServer(s.listener.Addr().String(), s.Handler())
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return s.compiler.Watch(ctx, s.onStart, s.onBuild)
	})

	g.Go(func() error {
		<-ctx.Done()
		s.hot.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		return nil
	})

	if s.configFile != "" {
		g.Go(func() error {
			return s.watchConfig(ctx)
		})
	}

	return g.Wait()
}

func (s *Server) onStart() {
	s.hot.Building()
}

func (s *Server) onBuild(stats *bundler.Stats, err error) {
	if err != nil {
		var bundlerErr *bundler.BundlerError
		if errors.As(err, &bundlerErr) {
			s.log.Error().Strs("details", bundlerErr.Details).Msg(bundlerErr.Message)
		} else {
			s.log.Error().Err(err).Msg("Build failed")
		}
		s.hot.Built(stats)
		return
	}

	s.store.Replace(stats)
	s.hot.Built(stats)
	s.log.Info().Str("hash", stats.Hash).Dur("duration", stats.Duration).Int("files", len(stats.Files)).Msg("Bundle built")
}

// watchConfig reports changes to the override file. Settings are resolved
// once per run so a change needs a restart.
func (s *Server) watchConfig(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer w.Close()

	// editors replace files on save, so watch the directory
	if err := w.Add(filepath.Dir(s.configFile)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", s.configFile, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.configFile) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				s.log.Warn().Str("file", s.configFile).Msg("Configuration changed, restart required")
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn().Err(err).Msg("Config watcher error")
		}
	}
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}
