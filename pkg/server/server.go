// Package server exposes form sessions over HTTP. A session is created for
// one module (and optionally one section) of a loaded spec; clients then set
// params one at a time, fetch choices, validate and read back the values.
//
// Every request rebuilds the form from the spec and the stored values, so
// the server itself holds no per-session state.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/goliatone/go-formspec/pkg/choices"
	"github.com/goliatone/go-formspec/pkg/formspec"
	"github.com/goliatone/go-formspec/pkg/store"
)

// APIRoot prefixes every route.
const APIRoot = "/api/v1"

func api(subpath string) string {
	if !strings.HasSuffix(subpath, "/") {
		subpath += "/"
	}
	return fmt.Sprintf("%s/%s", APIRoot, subpath)
}

// SpecSource yields the current spec store. *formspec.Reloader implements
// it.
type SpecSource interface {
	Store() *formspec.Store
}

type staticSpecs struct{ store *formspec.Store }

func (s staticSpecs) Store() *formspec.Store { return s.store }

// Static serves a fixed spec store.
func Static(store *formspec.Store) SpecSource {
	return staticSpecs{store: store}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for requests and errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLogLevel sets the level of echo's own logger: debug, info, warn,
// error or off.
func WithLogLevel(level string) Option {
	return func(s *Server) {
		s.logLevel = level
	}
}

// WithFetcher sets the fetcher for dynamic choices.
func WithFetcher(fetcher choices.Fetcher) Option {
	return func(s *Server) {
		s.fetcher = fetcher
	}
}

// WithExtras exposes host data to visibility rules of every session.
func WithExtras(extras map[string]any) Option {
	return func(s *Server) {
		s.extras = extras
	}
}

// Server serves the session API.
type Server struct {
	echo     *echo.Echo
	specs    SpecSource
	sessions *store.Store
	fetcher  choices.Fetcher
	extras   map[string]any
	logger   *slog.Logger
	logLevel string
}

// New builds a server for specs, persisting sessions in sessions.
func New(specs SpecSource, sessions *store.Store, opts ...Option) *Server {
	s := &Server{
		specs:    specs,
		sessions: sessions,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.echo = s.build()
	return s
}

func (s *Server) build() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	switch strings.ToLower(s.logLevel) {
	case "debug":
		e.Logger.SetLevel(log.DEBUG)
	case "info":
		e.Logger.SetLevel(log.INFO)
	case "warn", "":
		e.Logger.SetLevel(log.WARN)
	case "error":
		e.Logger.SetLevel(log.ERROR)
	case "off":
		e.Logger.SetLevel(log.OFF)
	default:
		e.Logger.SetLevel(log.WARN)
		e.Logger.Warnf("unknown loglevel: %s . fall-backed to warn", s.logLevel)
	}

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		e.DefaultHTTPErrorHandler(err, c)
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code < http.StatusInternalServerError {
			s.logger.Debug("server: request rejected", "path", c.Path(), "status", he.Code, "error", err)
			return
		}
		s.logger.Error("server: request failed", "path", c.Path(), "error", err)
	}

	e.Pre(middleware.AddTrailingSlash())
	e.Use(s.logRequests)

	e.GET(api("specs"), s.listSpecs)
	e.GET(api("specs/:spec/modules/:module"), s.getModule)

	e.POST(api("sessions"), s.createSession)
	e.GET(api("sessions/:id"), s.getSession)
	e.DELETE(api("sessions/:id"), s.deleteSession)
	e.GET(api("sessions/:id/params"), s.getParams)
	e.PUT(api("sessions/:id/params/:param"), s.setParam)
	e.GET(api("sessions/:id/params/:param/choices"), s.getChoices)
	e.POST(api("sessions/:id/validate"), s.validate)

	return e
}

func (s *Server) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		begin := time.Now()
		err := next(c)
		s.logger.Info("server: request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", c.Response().Status,
			"elapsed", time.Since(begin),
		)
		return err
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server: listening", "addr", addr)
		errc <- s.echo.Start(addr)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
