package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/student-portal/internal/navigation"
	appErrors "github.com/noah-isme/student-portal/pkg/errors"
	"github.com/noah-isme/student-portal/pkg/export"
	"github.com/noah-isme/student-portal/pkg/storage"
)

type screenItems interface {
	CurrentItems(ctx context.Context, sessionID string) (navigation.Screen, interface{}, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	ID           string
	RelativePath string
	Token        string
	URL          string
	Format       string
	ExpiresAt    time.Time
}

// Download is an opened export ready to stream.
type Download struct {
	File        *os.File
	Filename    string
	ContentType string
}

// ExportService renders the loaded items of a session's screen and hands out
// signed, expiring download links for the result.
type ExportService struct {
	screens   screenItems
	storage   fileStorage
	signer    *storage.SignedURLSigner
	renderers map[string]export.Renderer
	logger    *zap.Logger
	cfg       ExportConfig
	now       func() time.Time
}

// NewExportService constructs an ExportService. Without renderers it serves
// csv, pdf and xlsx.
func NewExportService(screens screenItems, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, renderers ...export.Renderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if len(renderers) == 0 {
		renderers = []export.Renderer{export.NewCSVExporter(), export.NewPDFExporter(), export.NewXLSXExporter()}
	}
	byFormat := make(map[string]export.Renderer, len(renderers))
	for _, r := range renderers {
		byFormat[r.Extension()] = r
	}
	return &ExportService{
		screens:   screens,
		storage:   files,
		signer:    signer,
		renderers: byFormat,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Formats lists the supported formats.
func (s *ExportService) Formats() []string {
	out := make([]string, 0, len(s.renderers))
	for f := range s.renderers {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Generate renders the session's current screen in format and stores it.
func (s *ExportService) Generate(ctx context.Context, sessionID, format string) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("unsupported format %q, expected one of %v", format, s.Formats()))
	}
	current, items, err := s.screens.CurrentItems(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	dataset, err := export.FromItems(current.Title, items)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "build export dataset")
	}
	payload, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render export")
	}

	id := uuid.NewString()
	relPath, err := s.storage.Save(s.buildFilename(current.ID, id, renderer.Extension()), payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store export")
	}
	token, expiresAt, err := s.signer.Generate(id, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "sign export")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Info("export generated",
		zap.String("export_id", id),
		zap.String("screen", string(current.ID)),
		zap.String("format", format),
		zap.Int("rows", len(dataset.Rows)),
	)
	return &ExportResult{
		ID:           id,
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/%s", prefix, token),
		Format:       format,
		ExpiresAt:    expiresAt,
	}, nil
}

// Open validates a download token and opens the export it points at.
func (s *ExportService) Open(token string) (*Download, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export link invalid")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export no longer available")
	}
	ext := strings.TrimPrefix(path.Ext(relPath), ".")
	contentType := "application/octet-stream"
	if r, ok := s.renderers[ext]; ok {
		contentType = r.ContentType()
	}
	return &Download{File: file, Filename: path.Base(relPath), ContentType: contentType}, nil
}

// Cleanup removes exports older than ttl (the configured ResultTTL when
// ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

// RunCleanup purges expired exports every interval until ctx ends.
func (s *ExportService) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.Cleanup(0)
			if err != nil {
				s.logger.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(deleted) > 0 {
				s.logger.Info("export cleanup", zap.Int("deleted", len(deleted)))
			}
		}
	}
}

func (s *ExportService) buildFilename(screenID navigation.ScreenID, id, ext string) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s/%s_%s_%s.%s", screenID, screenID, timestamp, id[:8], ext)
}
