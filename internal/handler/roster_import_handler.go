package handler

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/eduguide-api/internal/dto"
	"github.com/noah-isme/eduguide-api/internal/observability"
	"github.com/noah-isme/eduguide-api/internal/service"
	"github.com/noah-isme/eduguide-api/internal/utils"
)

// RosterImportHandler accepts CSV roster uploads and lists the upload history.
type RosterImportHandler struct {
	service service.RosterImportService
	maxSize int64
	tempDir string
	logger  zerolog.Logger
}

// NewRosterImportHandler constructs the admin import handler.
func NewRosterImportHandler(service service.RosterImportService, maxSizeMB int, tempDir string, logger zerolog.Logger) *RosterImportHandler {
	if maxSizeMB <= 0 {
		maxSizeMB = 5
	}
	return &RosterImportHandler{
		service: service,
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		tempDir: tempDir,
		logger:  logger.With().Str("component", "roster_import_handler").Logger(),
	}
}

// Register wires import routes.
func (h *RosterImportHandler) Register(router fiber.Router) {
	router.Post("/upload-csv", h.upload)
	router.Get("/uploads", h.history)
}

func (h *RosterImportHandler) upload(c *fiber.Ctx) error {
	logger := requestLogger(h.logger, c)

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	if file.Size > h.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, "file exceeds maximum allowed size")
	}

	name := filepath.Base(strings.TrimSpace(file.Filename))
	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		observability.UploadRejected().WithLabelValues("extension").Inc()
		return utils.SendError(c, fiber.StatusBadRequest, "only .csv files are accepted")
	}

	temp, err := os.CreateTemp(h.tempDir, "roster-*.csv")
	if err != nil {
		logger.Error().Err(err).Msg("failed to allocate temporary upload file")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to store upload")
	}
	tempPath := temp.Name()
	_ = temp.Close()

	if err := c.SaveFile(file, tempPath); err != nil {
		_ = os.Remove(tempPath)
		logger.Error().Err(err).Msg("failed to save upload")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to store upload")
	}

	result, err := h.service.Import(c.UserContext(), service.ImportRequest{
		FilePath:   tempPath,
		FileName:   name,
		UploadedBy: userIDFromContext(c),
	})
	if err != nil {
		return h.importFailed(c, logger, result, err)
	}

	return utils.SendSuccess(c, "Upload successful", result)
}

func (h *RosterImportHandler) importFailed(c *fiber.Ctx, logger *zerolog.Logger, result dto.ImportResult, err error) error {
	var details interface{}
	if result.UploadID != 0 {
		details = result
	}

	switch {
	case errors.Is(err, service.ErrImportFileType):
		return utils.Fail(c, fiber.StatusUnsupportedMediaType, "uploaded file is not a csv text file", details)
	case errors.Is(err, service.ErrImportEmptyFile),
		errors.Is(err, service.ErrImportMissingColumns),
		errors.Is(err, service.ErrImportMalformed):
		return utils.Fail(c, fiber.StatusUnprocessableEntity, err.Error(), details)
	default:
		logger.Error().Err(err).Uint("upload_id", result.UploadID).Msg("roster import failed")
		return utils.Fail(c, fiber.StatusInternalServerError, "Upload failed", details)
	}
}

func (h *RosterImportHandler) history(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page parameter")
	}
	pageSize, err := parseQueryInt(c, "pageSize")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid pageSize parameter")
	}

	response, err := h.service.History(c.UserContext(), dto.UploadListRequest{Page: page, PageSize: pageSize})
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list uploads")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list uploads")
	}

	return utils.OK(c, response.Items, "uploads retrieved", response.Pagination)
}
