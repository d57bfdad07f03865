package export

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mreicher/runflow/internal/tracker"
)

// SplitsDownload serves the splits returned by load as a CSV attachment.
// Errors from load are returned unchanged so callers pick the status.
func SplitsDownload(load func(c *fiber.Ctx) ([]tracker.Split, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		splits, err := load(c)
		if err != nil {
			return err
		}
		body, err := SplitsCSV(splits)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		c.Attachment(SplitsFilename)
		c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
		return c.Send(body)
	}
}
