package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-portal/internal/models"
	"github.com/noah-isme/student-portal/internal/navigation"
	appErrors "github.com/noah-isme/student-portal/pkg/errors"
	"github.com/noah-isme/student-portal/pkg/storage"
)

type screenItemsStub struct {
	screen navigation.Screen
	items  interface{}
	err    error
}

func (s screenItemsStub) CurrentItems(ctx context.Context, sessionID string) (navigation.Screen, interface{}, error) {
	return s.screen, s.items, s.err
}

func newExportFixture(t *testing.T, items screenItems) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Minute)
	return NewExportService(items, files, signer, ExportConfig{APIPrefix: "/api/v1/"}, nil), files
}

func progressItems() screenItemsStub {
	graph := navigation.NewGraph()
	progress, _ := graph.Screen(navigation.ScreenProgress)
	return screenItemsStub{
		screen: progress,
		items: []models.Course{
			{ID: "c1", Name: "Database Design", Progress: 90},
			{ID: "c2", Name: "Algorithms", Progress: 40},
		},
	}
}

func TestExportServiceGenerateCSVAndDownload(t *testing.T) {
	svc, _ := newExportFixture(t, progressItems())

	result, err := svc.Generate(context.Background(), "sess", "CSV")
	require.NoError(t, err)
	assert.Equal(t, "csv", result.Format)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/exports/"))
	assert.True(t, strings.HasPrefix(result.RelativePath, "progress/progress_"))

	download, err := svc.Open(result.Token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, "text/csv", download.ContentType)

	body, err := io.ReadAll(download.File)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,name,progress", lines[0])
	assert.Equal(t, "c1,Database Design,90", lines[1])
}

func TestExportServiceGenerateXLSX(t *testing.T) {
	svc, _ := newExportFixture(t, progressItems())

	result, err := svc.Generate(context.Background(), "sess", "xlsx")
	require.NoError(t, err)
	download, err := svc.Open(result.Token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.True(t, strings.HasSuffix(download.Filename, ".xlsx"))
	assert.Contains(t, download.ContentType, "spreadsheetml")
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc, _ := newExportFixture(t, progressItems())
	_, err := svc.Generate(context.Background(), "sess", "docx")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, []string{"csv", "pdf", "xlsx"}, svc.Formats())
}

func TestExportServicePropagatesScreenErrors(t *testing.T) {
	stub := screenItemsStub{err: appErrors.Clone(appErrors.ErrPreconditionFailed, "screen is EMPTY")}
	svc, _ := newExportFixture(t, stub)
	_, err := svc.Generate(context.Background(), "sess", "csv")
	assert.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))
}

func TestExportServiceOpenRejectsBadTokens(t *testing.T) {
	svc, _ := newExportFixture(t, progressItems())
	result, err := svc.Generate(context.Background(), "sess", "csv")
	require.NoError(t, err)

	_, err = svc.Open(result.Token + "x")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.Open("garbage")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestExportServiceCleanup(t *testing.T) {
	svc, _ := newExportFixture(t, progressItems())
	result, err := svc.Generate(context.Background(), "sess", "csv")
	require.NoError(t, err)

	deleted, err := svc.Cleanup(time.Hour)
	require.NoError(t, err)
	assert.Empty(t, deleted)

	time.Sleep(5 * time.Millisecond)
	deleted, err = svc.Cleanup(time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []string{result.RelativePath}, deleted)

	_, err = svc.Open(result.Token)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
