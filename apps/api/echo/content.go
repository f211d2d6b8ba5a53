package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolconnect/core"
	"github.com/trezcool/schoolconnect/core/content"
)

type (
	contentApi struct {
		syncer *content.Syncer
	}

	// contentView adds the items of one requested category to the feed state.
	contentView struct {
		content.View
		Category content.Category `json:"category,omitempty"`
		Items    []content.Item   `json:"items,omitempty"`
	}

	filterRequest struct {
		Category string `json:"category"`
	}
)

func registerContentAPI(g *echo.Group, s *server) {
	api := contentApi{syncer: s.deps.Syncer}

	g.GET("", api.get)
	g.PUT("/filter", api.setFilter)
	g.POST("/refresh", api.refresh)
	g.POST("/more", api.loadMore)
}

func (api *contentApi) get(ctx echo.Context) error {
	view := contentView{View: api.syncer.View()}
	if name := ctx.QueryParam("category"); name != "" {
		cat, err := content.ParseCategory(name)
		if err != nil {
			return err
		}
		view.Category = cat
		view.Items = view.Bundle.Category(cat)
		if view.Items == nil {
			view.Items = []content.Item{}
		}
	}
	return ctx.JSON(http.StatusOK, core.NewResult(view, nil))
}

func (api *contentApi) setFilter(ctx echo.Context) error {
	var data filterRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to filterRequest")
	}
	if err := api.syncer.SetFilter(ctx.Request().Context(), data.Category); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, core.NewResult(api.syncer.View(), nil))
}

func (api *contentApi) refresh(ctx echo.Context) error {
	if err := api.syncer.Refresh(ctx.Request().Context()); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, core.NewResult(api.syncer.View(), nil))
}

func (api *contentApi) loadMore(ctx echo.Context) error {
	if err := api.syncer.LoadMore(ctx.Request().Context()); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, core.NewResult(api.syncer.View(), nil))
}
