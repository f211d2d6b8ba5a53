package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolconnect/core"
	"github.com/trezcool/schoolconnect/core/user"
)

type (
	userApi struct {
		s *server
	}

	// storedUser is a credential as shown to the UI: without its password.
	storedUser struct {
		Username  string `json:"username"`
		FullName  string `json:"fullName"`
		IsDefault bool   `json:"isDefault"`
		Current   bool   `json:"current"`
	}

	switchRequest struct {
		Username string `json:"username" validate:"notblank"`
	}
)

func registerUserAPI(g *echo.Group, s *server) {
	api := userApi{s: s}

	g.GET("", api.list)
	g.GET("/others", api.others)
	g.POST("/switch", api.switchUser)
	g.DELETE("/:username", api.remove)
}

func (api *userApi) storedUsers(creds []user.Credential) []storedUser {
	var current string
	if p := api.s.deps.Session.Current(); p != nil {
		current = p.Username
	}
	users := make([]storedUser, 0, len(creds))
	for _, cred := range creds {
		users = append(users, storedUser{
			Username:  cred.Username,
			FullName:  cred.FullName,
			IsDefault: cred.IsDefault,
			Current:   cred.Username == current,
		})
	}
	return users
}

func (api *userApi) list(ctx echo.Context) error {
	creds := api.s.deps.Session.ListStoredUsers(ctx.Request().Context())
	return ctx.JSON(http.StatusOK, core.NewResult(api.storedUsers(creds), nil))
}

func (api *userApi) others(ctx echo.Context) error {
	creds, err := api.s.deps.Store.OtherUsers(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing other users")
	}
	return ctx.JSON(http.StatusOK, core.NewResult(api.storedUsers(creds), nil))
}

func (api *userApi) switchUser(ctx echo.Context) error {
	var data switchRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to switchRequest")
	}
	if err := core.ValidateStruct(data); err != nil {
		return err
	}

	p, err := api.s.deps.Session.SwitchUserWithData(ctx.Request().Context(), data.Username)
	if err != nil {
		return err
	}
	return api.s.respondSession(ctx, p)
}

func (api *userApi) remove(ctx echo.Context) error {
	if err := api.s.deps.RemoveUser(ctx.Request().Context(), ctx.Param("username")); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, core.NewResult(nil, nil))
}
