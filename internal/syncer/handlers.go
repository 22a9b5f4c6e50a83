package syncer

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, q *Queue, authMiddleware fiber.Handler) {
	r.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(q.Status())
	})

	r.Post("/now", authMiddleware, func(c *fiber.Ctx) error {
		if err := q.SyncNow(c.Context()); err != nil {
			if errors.Is(err, ErrSyncInFlight) {
				return fiber.NewError(fiber.StatusConflict, err.Error())
			}
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
		return c.JSON(q.Status())
	})

	r.Post("/online", authMiddleware, func(c *fiber.Ctx) error {
		var req struct {
			Online bool `json:"online"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		q.SetOnline(c.Context(), req.Online)
		return c.JSON(q.Status())
	})

	r.Post("/retry", authMiddleware, func(c *fiber.Ctx) error {
		q.RetryFailed(c.Context())
		return c.JSON(q.Status())
	})

	r.Post("/failed/clear", authMiddleware, func(c *fiber.Ctx) error {
		q.ClearFailed(c.Context())
		return c.JSON(q.Status())
	})
}
