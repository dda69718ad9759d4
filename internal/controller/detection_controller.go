// FILE: internal/controller/detection_controller.go
package controller

import (
	"io"

	"helmet-compliance-be/internal/dto"
	"helmet-compliance-be/internal/pkg/serverutils"
	"helmet-compliance-be/internal/service"
	"helmet-compliance-be/pkg/media"

	"github.com/gofiber/fiber/v2"
)

type IDetectionController interface {
	RegisterRoutes(r fiber.Router)
	Open(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	AcquireCamera(ctx *fiber.Ctx) error
	AcquireUpload(ctx *fiber.Ctx) error
	Run(ctx *fiber.Ctx) error
	Release(ctx *fiber.Ctx) error
	Close(ctx *fiber.Ctx) error
}

type detectionController struct {
	service        service.IDetectionService
	maxUploadBytes int64
}

func NewDetectionController(service service.IDetectionService, maxUploadBytes int) IDetectionController {
	return &detectionController{service: service, maxUploadBytes: int64(maxUploadBytes)}
}

func (c *detectionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/detections")
	h.Post("", c.Open)
	h.Get(":id", c.Show)
	h.Delete(":id", c.Close)
	h.Post(":id/camera", c.AcquireCamera)
	h.Post(":id/upload", c.AcquireUpload)
	h.Post(":id/run", c.Run)
	h.Post(":id/release", c.Release)
}

func (c *detectionController) Open(ctx *fiber.Ctx) error {
	var req dto.OpenDetectionRequest
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
	return ctx.JSON(serverutils.SuccessResponse("Detection session opened", res))
}

func (c *detectionController) Show(ctx *fiber.Ctx) error {
	res, err := c.service.Get(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return failure(err, nil)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show detection session", res))
}

func (c *detectionController) AcquireCamera(ctx *fiber.Ctx) error {
	var req dto.CameraRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}

	res, err := c.service.AcquireCamera(ctx.UserContext(), ctx.Params("id"), &req)
	if err != nil {
		return failure(err, res)
	}
	return ctx.JSON(serverutils.SuccessResponse("Camera acquired", res))
}

// AcquireUpload reads the multipart "file" part. A request without one acquires nothing, which
// mirrors a dismissed file picker.
func (c *detectionController) AcquireUpload(ctx *fiber.Ctx) error {
	var selection *media.FileSelection

	if fh, err := ctx.FormFile("file"); err == nil {
		if fh.Size > c.maxUploadBytes {
			return fiber.NewError(fiber.StatusRequestEntityTooLarge, "file exceeds the upload limit")
		}
		f, err := fh.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		data, err := io.ReadAll(io.LimitReader(f, c.maxUploadBytes))
		f.Close()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		selection = &media.FileSelection{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		}
	}

	res, err := c.service.AcquireUpload(ctx.UserContext(), ctx.Params("id"), selection)
	if err != nil {
		return failure(err, res)
	}
	return ctx.JSON(serverutils.SuccessResponse("File acquired", res))
}

func (c *detectionController) Run(ctx *fiber.Ctx) error {
	res, err := c.service.Run(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return failure(err, res)
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.AcceptedResponse("Detection started", res))
}

func (c *detectionController) Release(ctx *fiber.Ctx) error {
	res, err := c.service.Release(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return failure(err, res)
	}
	return ctx.JSON(serverutils.SuccessResponse("Media released", res))
}

func (c *detectionController) Close(ctx *fiber.Ctx) error {
	if err := c.service.Close(ctx.UserContext(), ctx.Params("id")); err != nil {
		return failure(err, nil)
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Detection session closed", nil))
}
