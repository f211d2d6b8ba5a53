package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolconnect/apps/shared"
	"github.com/trezcool/schoolconnect/core"
	"github.com/trezcool/schoolconnect/services/gateway"
)

type feesApi struct {
	deps *shared.Deps
}

func registerFeesAPI(g *echo.Group, s *server) {
	api := feesApi{deps: s.deps}

	g.GET("/years", api.academicYears)
	g.GET("/config", api.feeConfig)
	g.GET("/receipts", api.receipts)
	g.GET("/payments/recent", api.recentPayments)
	g.POST("/payments", api.initPayment)
}

func (api *feesApi) academicYears(ctx echo.Context) error {
	id, err := api.deps.Identity()
	if err != nil {
		return err
	}
	years, err := api.deps.Gateway.AcademicYears(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, core.NewResult(years, nil))
}

func (api *feesApi) feeConfig(ctx echo.Context) error {
	id, err := api.deps.Identity()
	if err != nil {
		return err
	}
	conf, err := api.deps.Gateway.FeeConfig(ctx.Request().Context(), id, ctx.QueryParam("year"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, core.NewResult(conf, nil))
}

func (api *feesApi) receipts(ctx echo.Context) error {
	id, err := api.deps.Identity()
	if err != nil {
		return err
	}
	receipts, err := api.deps.Gateway.Receipts(ctx.Request().Context(), id, ctx.QueryParam("year"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, core.NewResult(receipts, nil))
}

func (api *feesApi) recentPayments(ctx echo.Context) error {
	id, err := api.deps.Identity()
	if err != nil {
		return err
	}
	payments, err := api.deps.Gateway.RecentPayments(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, core.NewResult(payments, nil))
}

// initPayment registers the transaction and hands the payment pages over to the UI webview.
func (api *feesApi) initPayment(ctx echo.Context) error {
	var data gateway.PaymentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PaymentRequest")
	}
	id, err := api.deps.Identity()
	if err != nil {
		return err
	}
	handoff, err := api.deps.Gateway.InitPayment(ctx.Request().Context(), id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, core.NewResult(handoff, nil))
}
