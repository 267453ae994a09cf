package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/eduguide-api/internal/dto"
	"github.com/noah-isme/eduguide-api/internal/models"
	"github.com/noah-isme/eduguide-api/internal/observability"
	"github.com/noah-isme/eduguide-api/internal/repository"
)

var (
	// ErrImportUnreadable indicates the uploaded file could not be opened.
	ErrImportUnreadable = errors.New("uploaded file could not be read")
	// ErrImportEmptyFile indicates the upload holds no header row.
	ErrImportEmptyFile = errors.New("uploaded file is empty")
	// ErrImportFileType indicates the upload is not CSV text.
	ErrImportFileType = errors.New("uploaded file is not a csv text file")
	// ErrImportMissingColumns indicates the header lacks a mandatory column.
	ErrImportMissingColumns = errors.New("csv header must contain name and teacherEmail columns")
	// ErrImportMalformed indicates the row stream failed to parse mid-file.
	ErrImportMalformed = errors.New("csv stream is malformed")
)

// Recognised roster columns.
const (
	columnName         = "name"
	columnAge          = "age"
	columnClass        = "class"
	columnTeacherEmail = "teacherEmail"
	columnEmpathy      = "empathy"
	columnRegulation   = "regulation"
	columnCooperation  = "cooperation"
)

const utf8BOM = "\ufeff"

// ImportRequest describes one roster upload already saved to disk.
type ImportRequest struct {
	FilePath   string
	FileName   string
	UploadedBy uint
}

// RosterArchiver keeps a copy of imported roster files.
type RosterArchiver interface {
	Archive(ctx context.Context, name string, reader io.Reader) (string, error)
}

// ImportEventPublisher announces finished imports to other services.
type ImportEventPublisher interface {
	PublishImportCompleted(ctx context.Context, event dto.ImportCompletedEvent) error
}

// RosterImportService turns CSV rosters into students and keeps the upload audit trail.
type RosterImportService interface {
	Import(ctx context.Context, req ImportRequest) (dto.ImportResult, error)
	History(ctx context.Context, req dto.UploadListRequest) (dto.UploadListResponse, error)
}

type rosterImportService struct {
	users     repository.UserRepository
	students  repository.StudentRepository
	uploads   repository.UploadRepository
	cache     *RosterSummaryCache
	archiver  RosterArchiver
	publisher ImportEventPublisher
	policy    *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewRosterImportService constructs the import pipeline. Archiver and publisher are optional.
func NewRosterImportService(users repository.UserRepository, students repository.StudentRepository, uploads repository.UploadRepository, cache *RosterSummaryCache, archiver RosterArchiver, publisher ImportEventPublisher, logger zerolog.Logger) RosterImportService {
	return &rosterImportService{
		users:     users,
		students:  students,
		uploads:   uploads,
		cache:     cache,
		archiver:  archiver,
		publisher: publisher,
		policy:    bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "roster_import_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/eduguide-api/internal/service/roster_import"),
		now:       time.Now,
	}
}

// importRun accumulates the state of one import; it is owned by a single goroutine.
type importRun struct {
	upload    models.Upload
	processed int
	created   int
	rowErrors []string
	teachers  map[uint]struct{}
}

func (s *rosterImportService) Import(ctx context.Context, req ImportRequest) (result dto.ImportResult, err error) {
	// A client disconnect must not abort an import halfway through.
	ctx = context.WithoutCancel(ctx)
	start := s.now()

	ctx, span := s.tracer.Start(ctx, "roster_import.run", trace.WithAttributes(
		attribute.String("import.file_name", req.FileName),
		attribute.Int64("import.uploaded_by", int64(req.UploadedBy)),
	))
	defer span.End()

	defer func() {
		if removeErr := os.Remove(req.FilePath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			s.logger.Warn().Err(removeErr).Str("path", req.FilePath).Msg("failed to remove temporary roster file")
		}
	}()

	file, openErr := os.Open(req.FilePath)
	if openErr == nil {
		defer file.Close()
		if rejectErr := s.inspect(file); rejectErr != nil {
			span.RecordError(rejectErr)
			span.SetStatus(codes.Error, "upload rejected")
			return dto.ImportResult{}, rejectErr
		}
	}

	run := &importRun{
		upload: models.Upload{
			FileName:   req.FileName,
			UploadedBy: req.UploadedBy,
			Status:     models.UploadStatusReceived,
		},
		teachers: make(map[uint]struct{}),
	}
	if createErr := s.uploads.Create(ctx, &run.upload); createErr != nil {
		span.RecordError(createErr)
		span.SetStatus(codes.Error, "audit record not created")
		return dto.ImportResult{}, fmt.Errorf("failed to create upload record: %w", createErr)
	}
	span.SetAttributes(attribute.Int64("import.upload_id", int64(run.upload.ID)))

	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("roster import aborted: %v", recovered)
		}
		result = s.finalize(ctx, span, run, req, err, start)
	}()

	if openErr != nil {
		return dto.ImportResult{}, fmt.Errorf("%w: %v", ErrImportUnreadable, openErr)
	}

	return dto.ImportResult{}, s.stream(ctx, file, run)
}

// inspect rejects empty and non-text uploads before an audit record exists.
func (s *rosterImportService) inspect(file *os.File) error {
	info, err := file.Stat()
	if err == nil && info.Size() == 0 {
		observability.UploadRejected().WithLabelValues("empty").Inc()
		return ErrImportEmptyFile
	}

	mime, err := mimetype.DetectReader(file)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrImportUnreadable, err)
	}
	if !strings.HasPrefix(mime.String(), "text/") {
		observability.UploadRejected().WithLabelValues("type").Inc()
		return fmt.Errorf("%w: detected %s", ErrImportFileType, mime.String())
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %v", ErrImportUnreadable, err)
	}
	return nil
}

func (s *rosterImportService) stream(ctx context.Context, file io.Reader, run *importRun) error {
	if err := s.uploads.UpdateStatus(ctx, run.upload.ID, models.UploadStatusStreaming); err != nil {
		return fmt.Errorf("failed to mark upload streaming: %w", err)
	}
	run.upload.Status = models.UploadStatusStreaming

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return ErrImportEmptyFile
		}
		return fmt.Errorf("%w: %v", ErrImportMalformed, err)
	}

	columns := indexColumns(header)
	if _, ok := columns[columnName]; !ok {
		return ErrImportMissingColumns
	}
	if _, ok := columns[columnTeacherEmail]; !ok {
		return ErrImportMissingColumns
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			if run.processed == 0 {
				return ErrImportEmptyFile
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrImportMalformed, err)
		}

		run.processed++
		if rowErr := s.importRow(ctx, run, run.processed, columns, record); rowErr != "" {
			run.rowErrors = append(run.rowErrors, rowErr)
			observability.ImportRows().WithLabelValues("rejected").Inc()
			continue
		}
		run.created++
		observability.ImportRows().WithLabelValues("created").Inc()
	}
}

// importRow persists one data row and returns a descriptive error when the row is rejected.
func (s *rosterImportService) importRow(ctx context.Context, run *importRun, rowNumber int, columns map[string]int, record []string) string {
	field := func(column string) string {
		idx, ok := columns[column]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	name := plainText(s.policy, field(columnName))
	email := field(columnTeacherEmail)
	if name == "" || email == "" {
		return fmt.Sprintf("Missing required fields (name, teacherEmail) in row %d", rowNumber)
	}

	teacher, err := s.users.FindTeacherByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Sprintf("No teacher found with email: %s", email)
		}
		return fmt.Sprintf("Failed to resolve teacher %s for student %s: %v", email, name, err)
	}

	age, err := parseBoundedInt(field(columnAge), models.AgeMin, models.AgeMax)
	if err != nil {
		return fmt.Sprintf("Invalid age %q for student %s in row %d", field(columnAge), name, rowNumber)
	}

	student := models.Student{
		TeacherID: teacher.ID,
		Name:      name,
		Age:       age,
		Class:     plainText(s.policy, field(columnClass)),
	}
	if student.Class == "" {
		student.Class = models.DefaultClass
	}

	for _, column := range []string{columnEmpathy, columnRegulation, columnCooperation} {
		value, err := parseBoundedInt(field(column), models.SELMin, models.SELMax)
		if err != nil {
			return fmt.Sprintf("Invalid %s %q for student %s in row %d", column, field(column), name, rowNumber)
		}
		switch column {
		case columnEmpathy:
			student.SEL.Empathy = value
		case columnRegulation:
			student.SEL.Regulation = value
		case columnCooperation:
			student.SEL.Cooperation = value
		}
	}

	if err := s.students.Create(ctx, &student); err != nil {
		return fmt.Sprintf("Failed to create student %s: %v", name, err)
	}

	run.teachers[teacher.ID] = struct{}{}
	return ""
}

// finalize writes the terminal audit state exactly once and runs the post-import side effects.
func (s *rosterImportService) finalize(ctx context.Context, span trace.Span, run *importRun, req ImportRequest, runErr error, start time.Time) dto.ImportResult {
	completedAt := s.now().UTC()
	upload := &run.upload

	upload.RecordsProcessed = run.processed
	upload.StudentsAdded = run.created
	upload.RowErrors = run.rowErrors
	upload.HasErrors = len(run.rowErrors) > 0 || runErr != nil
	upload.CompletedAt = &completedAt

	switch {
	case runErr != nil:
		upload.Status = models.UploadStatusFailed
		upload.FailureReason = runErr.Error()
	case len(run.rowErrors) > 0:
		upload.Status = models.UploadStatusCompletedWithErrors
	default:
		upload.Status = models.UploadStatusCompleted
	}

	if upload.Status != models.UploadStatusFailed {
		upload.ArchiveURL = s.archive(ctx, req)
	}

	if err := s.uploads.Finalize(ctx, upload); err != nil {
		s.logger.Error().Err(err).Uint("upload_id", upload.ID).Msg("failed to finalize upload record")
	}

	observability.ImportOutcomes().WithLabelValues(upload.Status).Inc()
	observability.ImportDuration().Observe(time.Since(start).Seconds())

	span.SetAttributes(
		attribute.Int("import.processed", run.processed),
		attribute.Int("import.created", run.created),
		attribute.Int("import.row_errors", len(run.rowErrors)),
		attribute.String("import.status", upload.Status),
	)
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "import failed")
	}

	if len(run.teachers) > 0 {
		affected := make([]uint, 0, len(run.teachers))
		for id := range run.teachers {
			affected = append(affected, id)
		}
		s.cache.Invalidate(ctx, affected...)
	}

	if s.publisher != nil {
		event := dto.ImportCompletedEvent{
			UploadID:    upload.ID,
			FileName:    upload.FileName,
			UploadedBy:  upload.UploadedBy,
			Status:      upload.Status,
			Processed:   run.processed,
			Created:     run.created,
			HasErrors:   upload.HasErrors,
			CompletedAt: completedAt,
		}
		if err := s.publisher.PublishImportCompleted(ctx, event); err != nil {
			s.logger.Warn().Err(err).Uint("upload_id", upload.ID).Msg("failed to publish import event")
		}
	}

	logEvent := s.logger.Info()
	if runErr != nil {
		logEvent = s.logger.Error().Err(runErr)
	}
	logEvent.
		Uint("upload_id", upload.ID).
		Str("status", upload.Status).
		Int("processed", run.processed).
		Int("created", run.created).
		Int("row_errors", len(run.rowErrors)).
		Msg("roster import finished")

	result := dto.ImportResult{
		Count:     run.created,
		Processed: run.processed,
		UploadID:  upload.ID,
		Status:    upload.Status,
	}
	if len(run.rowErrors) > 0 {
		result.Errors = append([]string(nil), run.rowErrors...)
	}
	return result
}

func (s *rosterImportService) archive(ctx context.Context, req ImportRequest) string {
	if s.archiver == nil {
		return ""
	}

	file, err := os.Open(req.FilePath)
	if err != nil {
		s.logger.Warn().Err(err).Msg("roster file unavailable for archiving")
		return ""
	}
	defer file.Close()

	url, err := s.archiver.Archive(ctx, req.FileName, file)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to archive roster file")
		return ""
	}
	return url
}

func (s *rosterImportService) History(ctx context.Context, req dto.UploadListRequest) (dto.UploadListResponse, error) {
	page := req.Page
	if page <= 0 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	uploads, total, err := s.uploads.List(ctx, repository.UploadFilter{Page: page, PageSize: pageSize})
	if err != nil {
		return dto.UploadListResponse{}, err
	}

	items := make([]dto.UploadResponse, 0, len(uploads))
	for _, upload := range uploads {
		items = append(items, dto.NewUploadResponse(upload))
	}

	return dto.UploadListResponse{
		Items: items,
		Pagination: dto.PaginationMeta{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
			TotalPages: calculateTotalPages(total, pageSize),
		},
	}, nil
}

func indexColumns(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for idx, raw := range header {
		name := strings.TrimSpace(strings.TrimPrefix(raw, utf8BOM))
		if _, exists := columns[name]; !exists {
			columns[name] = idx
		}
	}
	return columns
}

// parseBoundedInt returns nil for an empty value and rejects non-integers or values outside [min, max].
func parseBoundedInt(raw string, min, max int) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	if value < min || value > max {
		return nil, fmt.Errorf("value %d outside %d-%d", value, min, max)
	}
	return &value, nil
}

func calculateTotalPages(total int64, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	pages := int(total) / pageSize
	if int(total)%pageSize != 0 {
		pages++
	}
	return pages
}
