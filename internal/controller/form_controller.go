// FILE: internal/controller/form_controller.go
package controller

import (
	"helmet-compliance-be/internal/dto"
	"helmet-compliance-be/internal/pkg/serverutils"
	"helmet-compliance-be/internal/service"
	"helmet-compliance-be/pkg/form"

	"github.com/gofiber/fiber/v2"
)

type IFormController interface {
	RegisterRoutes(r fiber.Router)
	Open(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	SetField(ctx *fiber.Ctx) error
	BlurField(ctx *fiber.Ctx) error
	Submit(ctx *fiber.Ctx) error
	Close(ctx *fiber.Ctx) error
}

type formController struct {
	service service.IFormService
}

func NewFormController(service service.IFormService) IFormController {
	return &formController{service: service}
}

func (c *formController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/forms")
	h.Post("", c.Open)
	h.Get(":id", c.Show)
	h.Delete(":id", c.Close)
	h.Put(":id/fields/:name", c.SetField)
	h.Post(":id/fields/:name/blur", c.BlurField)
	h.Post(":id/submit", c.Submit)
}

func (c *formController) Open(ctx *fiber.Ctx) error {
	var req dto.OpenFormRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Open(ctx.UserContext(), &req)
	if err != nil {
		return failure(err, nil)
	}
	return ctx.JSON(serverutils.SuccessResponse("Form session opened", res))
}

func (c *formController) Show(ctx *fiber.Ctx) error {
	res, err := c.service.Get(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return failure(err, nil)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show form session", res))
}

func (c *formController) SetField(ctx *fiber.Ctx) error {
	var req dto.SetFieldRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SetField(ctx.UserContext(), ctx.Params("id"), ctx.Params("name"), req.Value)
	if err != nil {
		return failure(err, res)
	}
	return ctx.JSON(serverutils.SuccessResponse("Field updated", res))
}

func (c *formController) BlurField(ctx *fiber.Ctx) error {
	res, err := c.service.BlurField(ctx.UserContext(), ctx.Params("id"), ctx.Params("name"))
	if err != nil {
		return failure(err, res)
	}
	return ctx.JSON(serverutils.SuccessResponse("Field touched", res))
}

// Submit answers 202 while the remote submit runs and 400 with the field errors when local
// validation rejects the form.
func (c *formController) Submit(ctx *fiber.Ctx) error {
	res, err := c.service.Submit(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return failure(err, nil)
	}

	switch {
	case res.Status == form.StatusFailed && res.Failure == form.FailureValidation:
		return &serverutils.HTTPError{Code: fiber.StatusBadRequest, Message: "Please fix the highlighted fields", Data: res}
	case res.Status == form.StatusSubmitting:
		return ctx.Status(fiber.StatusAccepted).JSON(serverutils.AcceptedResponse("Submit started", res))
	default:
		return ctx.JSON(serverutils.SuccessResponse("Submit ignored", res))
	}
}

func (c *formController) Close(ctx *fiber.Ctx) error {
	if err := c.service.Close(ctx.UserContext(), ctx.Params("id")); err != nil {
		return failure(err, nil)
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Form session closed", nil))
}
