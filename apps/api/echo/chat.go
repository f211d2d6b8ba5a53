package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolconnect/apps/shared"
	"github.com/trezcool/schoolconnect/core"
	"github.com/trezcool/schoolconnect/services/gateway"
)

type (
	chatApi struct {
		deps *shared.Deps
	}

	sendMessageRequest struct {
		Text string `json:"text"`
	}

	startCommunicationRequest struct {
		Role    gateway.TeacherRole `json:"role"`
		Subject string              `json:"subject"`
		Message string              `json:"message"`
	}
)

func registerChatAPI(g *echo.Group, s *server) {
	api := chatApi{deps: s.deps}

	g.GET("/teachers", api.teachers)
	g.GET("/communications", api.communications)
	g.POST("/communications", api.startCommunication)
	g.GET("/communications/:id/messages", api.messages)
	g.POST("/communications/:id/messages", api.sendMessage)
}

func (api *chatApi) teachers(ctx echo.Context) error {
	id, err := api.deps.Identity()
	if err != nil {
		return err
	}
	roles, err := api.deps.Gateway.TeacherRoles(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, core.NewResult(roles, nil))
}

func (api *chatApi) communications(ctx echo.Context) error {
	id, err := api.deps.Identity()
	if err != nil {
		return err
	}
	list, err := api.deps.Gateway.Communications(ctx.Request().Context(), id, ctx.QueryParam("status"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, core.NewResult(list, nil))
}

func (api *chatApi) startCommunication(ctx echo.Context) error {
	var data startCommunicationRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to startCommunicationRequest")
	}
	id, err := api.deps.Identity()
	if err != nil {
		return err
	}
	if err := api.deps.Gateway.StartCommunication(ctx.Request().Context(), id, data.Role, data.Subject, data.Message); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, core.NewResult(nil, nil))
}

func (api *chatApi) messages(ctx echo.Context) error {
	id, err := api.deps.Identity()
	if err != nil {
		return err
	}
	thread, err := api.deps.Gateway.Messages(ctx.Request().Context(), id, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, core.NewResult(thread, nil))
}

func (api *chatApi) sendMessage(ctx echo.Context) error {
	var data sendMessageRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to sendMessageRequest")
	}
	id, err := api.deps.Identity()
	if err != nil {
		return err
	}
	sent, err := api.deps.Gateway.SendMessage(ctx.Request().Context(), id, ctx.Param("id"), data.Text)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, core.NewResult(sent, nil))
}
