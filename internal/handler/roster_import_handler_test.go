package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eduguide-api/internal/dto"
	"github.com/noah-isme/eduguide-api/internal/handler"
	"github.com/noah-isme/eduguide-api/internal/service"
)

type stubImportService struct {
	request  service.ImportRequest
	content  string
	result   dto.ImportResult
	err      error
	history  dto.UploadListResponse
	listReq  dto.UploadListRequest
	imported int
}

func (s *stubImportService) Import(_ context.Context, req service.ImportRequest) (dto.ImportResult, error) {
	s.imported++
	s.request = req
	data, err := os.ReadFile(req.FilePath)
	if err != nil {
		return dto.ImportResult{}, err
	}
	s.content = string(data)
	_ = os.Remove(req.FilePath)
	return s.result, s.err
}

func (s *stubImportService) History(_ context.Context, req dto.UploadListRequest) (dto.UploadListResponse, error) {
	s.listReq = req
	return s.history, nil
}

func importApp(svc service.RosterImportService, maxSizeMB int, tempDir string) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/admin", withUser(9, "admin"))
	handler.NewRosterImportHandler(svc, maxSizeMB, tempDir, zerolog.Nop()).Register(group)
	return app
}

func TestRosterImportHandlerSuccess(t *testing.T) {
	svc := &stubImportService{result: dto.ImportResult{Count: 2, Processed: 3, Errors: []string{"No teacher found with email: x@y.z"}, UploadID: 4, Status: "completed_with_errors"}}
	tempDir := t.TempDir()
	app := importApp(svc, 1, tempDir)

	csv := "name,teacherEmail\nAda,teacher@example.com\n"
	resp, body := doMultipart(t, app, "/api/admin/upload-csv", "../../Roster.CSV", []byte(csv))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.True(t, body.Success)
	require.Equal(t, "Upload successful", body.Message)

	var result dto.ImportResult
	require.NoError(t, json.Unmarshal(body.Data, &result))
	require.Equal(t, 2, result.Count)
	require.Equal(t, 3, result.Processed)
	require.Len(t, result.Errors, 1)

	require.Equal(t, uint(9), svc.request.UploadedBy)
	require.Equal(t, "Roster.CSV", svc.request.FileName)
	require.Equal(t, csv, svc.content)

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRosterImportHandlerRejectsBeforeImport(t *testing.T) {
	svc := &stubImportService{}
	app := importApp(svc, 1, t.TempDir())

	resp, body := doMultipart(t, app, "/api/admin/upload-csv", "roster.xlsx", []byte("name\n"))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.False(t, body.Success)

	large := bytes.Repeat([]byte("a"), 1024*1024+10)
	resp, _ = doMultipart(t, app, "/api/admin/upload-csv", "roster.csv", large)
	require.Equal(t, fiber.StatusRequestEntityTooLarge, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/admin/upload-csv", map[string]string{})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	require.Zero(t, svc.imported)
}

func TestRosterImportHandlerMapsErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		result dto.ImportResult
		status int
	}{
		{name: "file type", err: fmt.Errorf("%w: detected image/png", service.ErrImportFileType), status: fiber.StatusUnsupportedMediaType},
		{name: "empty", err: service.ErrImportEmptyFile, status: fiber.StatusUnprocessableEntity},
		{name: "missing columns", err: service.ErrImportMissingColumns, result: dto.ImportResult{UploadID: 3, Status: "failed"}, status: fiber.StatusUnprocessableEntity},
		{name: "malformed", err: fmt.Errorf("%w: bare quote", service.ErrImportMalformed), result: dto.ImportResult{UploadID: 5, Processed: 1, Status: "failed"}, status: fiber.StatusUnprocessableEntity},
		{name: "unexpected", err: errors.New("db down"), status: fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubImportService{err: tc.err, result: tc.result}
			resp, body := doMultipart(t, importApp(svc, 1, t.TempDir()), "/api/admin/upload-csv", "roster.csv", []byte("name\n"))
			require.Equal(t, tc.status, resp.StatusCode)
			require.False(t, body.Success)

			if tc.result.UploadID != 0 {
				var details dto.ImportResult
				require.NoError(t, json.Unmarshal(body.Details, &details))
				require.Equal(t, tc.result.UploadID, details.UploadID)
			} else {
				require.Empty(t, body.Details)
			}
		})
	}
}

func TestRosterImportHandlerHistory(t *testing.T) {
	svc := &stubImportService{history: dto.UploadListResponse{
		Items:      []dto.UploadResponse{{ID: 2, FileName: "roster.csv", RecordsProcessed: 3, StudentsAdded: 2, HasErrors: true}},
		Pagination: dto.PaginationMeta{Page: 2, PageSize: 1, TotalItems: 2, TotalPages: 2},
	}}
	app := importApp(svc, 1, t.TempDir())

	resp, body := doJSON(t, app, http.MethodGet, "/api/admin/uploads?page=2&pageSize=1", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, dto.UploadListRequest{Page: 2, PageSize: 1}, svc.listReq)

	var items []dto.UploadResponse
	require.NoError(t, json.Unmarshal(body.Data, &items))
	require.Len(t, items, 1)
	require.True(t, items[0].HasErrors)

	var meta dto.PaginationMeta
	require.NoError(t, json.Unmarshal(body.Meta, &meta))
	require.Equal(t, int64(2), meta.TotalItems)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/admin/uploads?page=abc", nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
