package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolconnect/core"
	"github.com/trezcool/schoolconnect/core/auth"
)

type (
	sessionApi struct {
		s *server
	}

	loginRequest struct {
		Username string `json:"username"`
		Password string `json:"password"`
		AddChild bool   `json:"add_child"`
	}

	sessionResponse struct {
		Session *auth.Payload `json:"session"`
		Token   string        `json:"token"`
	}
)

func registerSessionAPI(g *echo.Group, authed []echo.MiddlewareFunc, s *server) {
	api := sessionApi{s: s}

	sg := g.Group("/session")

	// un-authed endpoints
	sg.POST("/login", api.login)
	sg.POST("/auto-login", api.autoLogin)

	// authed endpoints
	ag := sg.Group("", authed...)
	ag.POST("/logout", api.logout)
	ag.POST("/logout-all", api.logoutAll)
}

func (api *sessionApi) login(ctx echo.Context) error {
	var data loginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to loginRequest")
	}
	if data.AddChild {
		if err := api.s.deps.CheckChildLimit(ctx.Request().Context(), data.Username); err != nil {
			return err
		}
	}

	p, err := api.s.deps.Session.Login(ctx.Request().Context(), data.Username, data.Password, data.AddChild)
	if err != nil {
		return err
	}
	return api.s.respondSession(ctx, p)
}

func (api *sessionApi) autoLogin(ctx echo.Context) error {
	p, err := api.s.deps.Session.AutoLogin(ctx.Request().Context())
	if err != nil {
		return err
	}
	return api.s.respondSession(ctx, p)
}

func (api *sessionApi) logout(ctx echo.Context) error {
	if err := api.s.deps.Session.Logout(ctx.Request().Context()); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, core.NewResult(nil, nil))
}

func (api *sessionApi) logoutAll(ctx echo.Context) error {
	if err := api.s.deps.Session.CompleteLogout(ctx.Request().Context()); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, core.NewResult(nil, nil))
}

// respondSession answers with the session payload and a bearer token bound to it.
func (s *server) respondSession(ctx echo.Context, p *auth.Payload) error {
	token, err := s.tokens.generate(p)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, core.NewResult(sessionResponse{Session: p, Token: token}, nil))
}
