// FILE: internal/controller/dashboard_controller.go
package controller

import (
	"helmet-compliance-be/internal/pkg/serverutils"
	"helmet-compliance-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IDashboardController interface {
	RegisterRoutes(r fiber.Router)
	Stats(ctx *fiber.Ctx) error
	Theme(ctx *fiber.Ctx) error
}

type dashboardController struct {
	service service.IDashboardService
}

func NewDashboardController(service service.IDashboardService) IDashboardController {
	return &dashboardController{service: service}
}

func (c *dashboardController) RegisterRoutes(r fiber.Router) {
	r.Get("/dashboard/stats", c.Stats)
	r.Get("/theme", c.Theme)
}

func (c *dashboardController) Stats(ctx *fiber.Ctx) error {
	res, err := c.service.GetStats(ctx.UserContext())
	if err != nil {
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(serverutils.ErrorResponse(503, err.Error()))
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get dashboard stats", res))
}

func (c *dashboardController) Theme(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success get theme", c.service.GetTheme(ctx.UserContext())))
}
