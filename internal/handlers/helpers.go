package handlers

import (
	"errors"
	"strings"

	"github.com/clubhub/backend/internal/services"
	"github.com/clubhub/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

// guardError maps guard resolution failures onto the response envelope.
func guardError(c *fiber.Ctx, err error, notFoundMessage string) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return utils.Error(c, fiber.StatusNotFound, notFoundMessage)
	case errors.Is(err, services.ErrForbidden):
		return utils.Error(c, fiber.StatusForbidden, "insufficient permissions")
	default:
		return utils.Error(c, fiber.StatusInternalServerError, "failed resolving resource")
	}
}

func isValidEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	return strings.Contains(domain, ".") && !strings.ContainsAny(email, " \t")
}
