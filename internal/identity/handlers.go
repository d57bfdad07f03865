package identity

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, p *Provider) {
	r.Post("/signup", func(c *fiber.Ctx) error {
		var req Credentials
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		user, err := p.SignUp(req.Email, req.Password)
		switch {
		case errors.Is(err, ErrEmailTaken):
			return fiber.NewError(fiber.StatusConflict, err.Error())
		case err != nil:
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return session(c, p, user, fiber.StatusCreated)
	})

	r.Post("/signin", func(c *fiber.Ctx) error {
		var req Credentials
		if err := c.BodyParser(&req); err != nil || req.Email == "" || req.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, ErrMissingCredentials.Error())
		}
		user, err := p.SignIn(req.Email, req.Password)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		return session(c, p, user, fiber.StatusOK)
	})

	r.Post("/guest", func(c *fiber.Ctx) error {
		return session(c, p, p.SignInAsGuest(), fiber.StatusCreated)
	})

	r.Post("/signout", func(c *fiber.Ctx) error {
		p.SignOut()
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Get("/me", Middleware(p), func(c *fiber.Ctx) error {
		user := p.CurrentUser()
		if user == nil || user.ID != c.Locals("user_id") {
			return fiber.NewError(fiber.StatusUnauthorized, "session ended")
		}
		return c.JSON(user)
	})
}

func session(c *fiber.Ctx, p *Provider, user User, status int) error {
	resp, err := p.Token(user)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.Status(status).JSON(resp)
}
