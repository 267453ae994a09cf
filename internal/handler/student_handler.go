package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/eduguide-api/internal/dto"
	"github.com/noah-isme/eduguide-api/internal/service"
	"github.com/noah-isme/eduguide-api/internal/utils"
)

// StudentHandler exposes the teacher-scoped student endpoints.
type StudentHandler struct {
	service service.StudentService
	logger  zerolog.Logger
}

// NewStudentHandler constructs a student handler.
func NewStudentHandler(service service.StudentService, logger zerolog.Logger) *StudentHandler {
	return &StudentHandler{
		service: service,
		logger:  logger.With().Str("component", "student_handler").Logger(),
	}
}

// Register wires student routes; /summary is registered ahead of /:id.
func (h *StudentHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/summary", h.summary)
	router.Get("/:id", h.get)
	router.Post("/:id/reflection", h.addReflection)
	router.Post("/:id/literacy-scores", h.addLiteracyScore)
	router.Post("/:id/sel-scores", h.updateSEL)
}

func (h *StudentHandler) list(c *fiber.Ctx) error {
	students, err := h.service.List(c.UserContext(), userIDFromContext(c))
	if err != nil {
		return h.fail(c, err, "failed to list students")
	}
	return utils.SendSuccess(c, "students retrieved", students)
}

func (h *StudentHandler) create(c *fiber.Ctx) error {
	var payload dto.StudentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	student, err := h.service.Create(c.UserContext(), userIDFromContext(c), payload)
	if err != nil {
		return h.fail(c, err, "failed to create student")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "student created", student)
}

func (h *StudentHandler) summary(c *fiber.Ctx) error {
	summary, err := h.service.Summary(c.UserContext(), userIDFromContext(c))
	if err != nil {
		return h.fail(c, err, "failed to build roster summary")
	}
	return utils.SendSuccess(c, "roster summary retrieved", summary)
}

func (h *StudentHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student id")
	}

	student, err := h.service.Get(c.UserContext(), userIDFromContext(c), id)
	if err != nil {
		return h.fail(c, err, "failed to load student")
	}
	return utils.SendSuccess(c, "student retrieved", student)
}

func (h *StudentHandler) addReflection(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student id")
	}

	var payload dto.ReflectionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	student, err := h.service.AddReflection(c.UserContext(), userIDFromContext(c), id, payload)
	if err != nil {
		return h.fail(c, err, "failed to add reflection")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "reflection added", student)
}

func (h *StudentHandler) addLiteracyScore(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student id")
	}

	var payload dto.LiteracyScoreInput
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	student, err := h.service.AddLiteracyScore(c.UserContext(), userIDFromContext(c), id, payload)
	if err != nil {
		return h.fail(c, err, "failed to add literacy score")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "literacy score added", student)
}

func (h *StudentHandler) updateSEL(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student id")
	}

	var payload dto.SELScoresInput
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	student, err := h.service.UpdateSEL(c.UserContext(), userIDFromContext(c), id, payload)
	if err != nil {
		return h.fail(c, err, "failed to update SEL scores")
	}
	return utils.SendSuccess(c, "SEL scores updated", student)
}

func (h *StudentHandler) fail(c *fiber.Ctx, err error, message string) error {
	switch {
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(err))
	case errors.Is(err, service.ErrEmptyContent):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrStudentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg(message)
		return utils.SendError(c, fiber.StatusInternalServerError, message)
	}
}
