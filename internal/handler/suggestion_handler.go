package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/eduguide-api/internal/dto"
	"github.com/noah-isme/eduguide-api/internal/service"
	"github.com/noah-isme/eduguide-api/internal/utils"
	"github.com/noah-isme/eduguide-api/pkg/ai"
)

// SuggestionHandler serves AI teaching suggestions and the provider status check.
type SuggestionHandler struct {
	service service.TeachingSuggestionService
	limiter fiber.Handler
	logger  zerolog.Logger
}

// NewSuggestionHandler constructs the handler. A nil limiter leaves suggestions unthrottled.
func NewSuggestionHandler(service service.TeachingSuggestionService, limiter fiber.Handler, logger zerolog.Logger) *SuggestionHandler {
	if limiter == nil {
		limiter = func(c *fiber.Ctx) error { return c.Next() }
	}
	return &SuggestionHandler{
		service: service,
		limiter: limiter,
		logger:  logger.With().Str("component", "suggestion_handler").Logger(),
	}
}

// Register wires the ad-hoc suggestion and status routes.
func (h *SuggestionHandler) Register(router fiber.Router) {
	router.Post("/suggestion", h.limiter, h.suggest)
	router.Get("/status", h.status)
}

// RegisterStudentRoutes wires the stored-student suggestion route under the students group.
func (h *SuggestionHandler) RegisterStudentRoutes(router fiber.Router) {
	router.Post("/:id/suggestion", h.limiter, h.suggestForStudent)
}

func (h *SuggestionHandler) suggest(c *fiber.Ctx) error {
	var payload dto.SuggestionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.Suggest(c.UserContext(), payload)
	if err != nil {
		return h.fail(c, err)
	}
	return utils.SendSuccess(c, "suggestion generated", response)
}

func (h *SuggestionHandler) suggestForStudent(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student id")
	}

	response, err := h.service.SuggestForStudent(c.UserContext(), userIDFromContext(c), id)
	if err != nil {
		return h.fail(c, err)
	}
	return utils.SendSuccess(c, "suggestion generated", response)
}

func (h *SuggestionHandler) status(c *fiber.Ctx) error {
	status, err := h.service.Status(c.UserContext())
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to check ai status")
		return utils.SendError(c, fiber.StatusInternalServerError, "Error checking API status")
	}

	if !status.Available {
		return c.Status(fiber.StatusServiceUnavailable).JSON(utils.APIResponse{
			Success: false,
			Data:    status,
			Message: status.Message,
		})
	}
	return utils.SendSuccess(c, status.Message, status)
}

// fail maps provider failures onto distinct client-facing statuses.
func (h *SuggestionHandler) fail(c *fiber.Ctx, err error) error {
	logger := requestLogger(h.logger, c)

	switch {
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(err))
	case errors.Is(err, service.ErrStudentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, ai.ErrQuotaExceeded):
		return utils.SendError(c, fiber.StatusTooManyRequests, "API quota exceeded. Please try again later.")
	case errors.Is(err, ai.ErrInvalidCredential):
		logger.Error().Err(err).Msg("ai credential rejected")
		return utils.SendError(c, fiber.StatusServiceUnavailable, "Invalid API key. Please check your configuration.")
	case errors.Is(err, ai.ErrNotConfigured):
		return utils.SendError(c, fiber.StatusServiceUnavailable, "AI suggestion service is not configured.")
	case errors.Is(err, ai.ErrCompletionTimeout):
		logger.Warn().Err(err).Msg("ai completion timed out")
		return utils.SendError(c, fiber.StatusGatewayTimeout, "AI suggestion service timed out. Please try again.")
	default:
		logger.Error().Err(err).Msg("ai completion failed")
		return utils.SendError(c, fiber.StatusBadGateway, "Failed to generate content with the AI suggestion service")
	}
}
