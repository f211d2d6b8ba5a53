package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolconnect/apps/shared"
)

type (
	Options struct {
		Address        string
		DisableReqLogs bool
		Deps           *shared.Deps
		SignalShutdown func() // called when a handler reports a shutdown error
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts   *Options
		app    *echo.Echo
		deps   *shared.Deps
		tokens *tokenIssuer
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	if opts.SignalShutdown == nil {
		opts.SignalShutdown = func() {}
	}
	s := &server{
		opts:   opts,
		app:    echo.New(),
		deps:   opts.Deps,
		tokens: newTokenIssuer(opts.Deps.Conf),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.opts.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	authed := []echo.MiddlewareFunc{middleware.JWTWithConfig(s.tokens.config), s.sessionMiddleware}

	registerSessionAPI(v1, authed, s)
	registerUserAPI(v1.Group("/users", authed...), s)
	registerContentAPI(v1.Group("/content", authed...), s)
	registerChatAPI(v1.Group("/chat", authed...), s)
	registerFeesAPI(v1.Group("/fees", authed...), s)
}

func (s *server) Start() error {
	if err := s.app.Start(s.opts.Address); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "starting server")
	}
	return nil
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to SchoolConnect bridge API!")
}
