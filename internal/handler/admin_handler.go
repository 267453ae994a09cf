package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/eduguide-api/internal/dto"
	"github.com/noah-isme/eduguide-api/internal/service"
	"github.com/noah-isme/eduguide-api/internal/utils"
)

// AdminHandler serves dashboard statistics and account provisioning.
type AdminHandler struct {
	stats  service.AdminStatsService
	users  service.UserService
	logger zerolog.Logger
}

// NewAdminHandler constructs the admin handler.
func NewAdminHandler(stats service.AdminStatsService, users service.UserService, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		stats:  stats,
		users:  users,
		logger: logger.With().Str("component", "admin_handler").Logger(),
	}
}

// Register wires admin routes.
func (h *AdminHandler) Register(router fiber.Router) {
	router.Get("/stats", h.getStats)
	router.Post("/users", h.createUser)
	router.Get("/teachers", h.listTeachers)
}

func (h *AdminHandler) getStats(c *fiber.Ctx) error {
	stats, err := h.stats.Stats(c.UserContext())
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to compute admin stats")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load statistics")
	}
	return utils.SendSuccess(c, "statistics retrieved", stats)
}

func (h *AdminHandler) createUser(c *fiber.Ctx) error {
	var payload dto.UserCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.users.Create(c.UserContext(), payload)
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(err))
		case errors.Is(err, service.ErrEmailTaken):
			return utils.SendError(c, fiber.StatusConflict, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to create user")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to create user")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "user created", user)
}

func (h *AdminHandler) listTeachers(c *fiber.Ctx) error {
	teachers, err := h.users.ListTeachers(c.UserContext())
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list teachers")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list teachers")
	}
	return utils.SendSuccess(c, "teachers retrieved", teachers)
}
