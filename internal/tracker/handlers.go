package tracker

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mreicher/runflow/internal/location"
)

// SamplePusher accepts fixes posted over HTTP.
type SamplePusher interface {
	Push(location.Sample) int
}

type sampleRequest struct {
	Lat *float64   `json:"lat"`
	Lng *float64   `json:"lng"`
	Alt *float64   `json:"alt"`
	TS  *time.Time `json:"ts"`
}

func RegisterRoutes(r fiber.Router, engine *Engine, samples SamplePusher, authMiddleware fiber.Handler) {
	r.Get("/state", func(c *fiber.Ctx) error {
		return c.JSON(engine.Snapshot())
	})

	r.Post("/start", authMiddleware, func(c *fiber.Ctx) error {
		runnerID, _ := c.Locals("user_id").(string)
		if !engine.StartFor(runnerID) {
			snap := engine.Snapshot()
			if !snap.Ready {
				return fiber.NewError(fiber.StatusConflict, "location not ready")
			}
			return c.JSON(snap)
		}
		return c.Status(fiber.StatusCreated).JSON(engine.Snapshot())
	})

	r.Post("/pause", authMiddleware, func(c *fiber.Ctx) error {
		engine.Pause()
		return c.JSON(engine.Snapshot())
	})

	r.Post("/resume", authMiddleware, func(c *fiber.Ctx) error {
		engine.Resume()
		return c.JSON(engine.Snapshot())
	})

	r.Post("/stop", authMiddleware, func(c *fiber.Ctx) error {
		run, completed := engine.Stop()
		resp := fiber.Map{"completed": completed, "state": engine.Snapshot()}
		if completed {
			resp["run"] = run
		}
		return c.JSON(resp)
	})

	r.Post("/reset", authMiddleware, func(c *fiber.Ctx) error {
		engine.Reset()
		return c.JSON(engine.Snapshot())
	})

	r.Post("/samples", func(c *fiber.Ctx) error {
		var req sampleRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.Lat == nil || req.Lng == nil {
			return fiber.NewError(fiber.StatusBadRequest, "lat and lng required")
		}
		sample := location.Sample{Latitude: *req.Lat, Longitude: *req.Lng, Altitude: req.Alt, DeviceTime: req.TS}
		if err := sample.Validate(); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		delivered := samples.Push(sample)
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"delivered": delivered})
	})
}
