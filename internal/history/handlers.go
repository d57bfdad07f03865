package history

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/mreicher/runflow/internal/export"
	"github.com/mreicher/runflow/internal/tracker"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		runs, err := svc.List(c.Context(), userID(c))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(runs)
	})

	r.Get("/pending", authMiddleware, func(c *fiber.Ctx) error {
		run, err := svc.Pending(userID(c))
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(fiber.Map{"run": run, "summary": export.Summary(run.Run)})
	})

	r.Get("/pending/splits.csv", authMiddleware, export.SplitsDownload(func(c *fiber.Ctx) ([]tracker.Split, error) {
		run, err := svc.Pending(userID(c))
		if err != nil {
			return nil, toHTTPError(err)
		}
		return run.Splits, nil
	}))

	r.Post("/pending/save", authMiddleware, func(c *fiber.Ctx) error {
		run, err := svc.SavePending(c.Context(), userID(c))
		if err != nil {
			return toHTTPError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(run)
	})

	r.Post("/pending/discard", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.DiscardPending(userID(c)); err != nil {
			return toHTTPError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Get("/:id", authMiddleware, func(c *fiber.Ctx) error {
		run, err := svc.Get(c.Context(), userID(c), c.Params("id"))
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(fiber.Map{"run": run, "summary": export.Summary(run.Run)})
	})

	r.Get("/:id/splits.csv", authMiddleware, export.SplitsDownload(func(c *fiber.Ctx) ([]tracker.Split, error) {
		run, err := svc.Get(c.Context(), userID(c), c.Params("id"))
		if err != nil {
			return nil, toHTTPError(err)
		}
		return run.Splits, nil
	}))

	r.Get("/:id/elevation", authMiddleware, func(c *fiber.Ctx) error {
		run, err := svc.Get(c.Context(), userID(c), c.Params("id"))
		if err != nil {
			return toHTTPError(err)
		}
		points, err := export.ElevationProfile(run.Altitudes, run.DistanceMeters)
		if err != nil {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
		return c.JSON(points)
	})
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrRunNotFound), errors.Is(err, ErrNoPendingRun):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicateRun):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
