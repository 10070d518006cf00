package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-routine-api/internal/routine"
	appErrors "github.com/noah-isme/campus-routine-api/pkg/errors"
	"github.com/noah-isme/campus-routine-api/pkg/export"
	"github.com/noah-isme/campus-routine-api/pkg/storage"
)

// Export formats.
const (
	ExportFormatPDF = "pdf"
	ExportFormatCSV = "csv"
)

type routineGetter interface {
	Get(ctx context.Context, id string) (*routine.Routine, error)
}

type csvRenderer interface {
	RenderRoutine(r routine.Routine) ([]byte, error)
}

type pdfRenderer interface {
	RenderRoutine(r routine.Routine, title string) ([]byte, error)
}

type fileStorage interface {
	Save(name string, data []byte) (string, error)
	Read(name string) ([]byte, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export links.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportFile is a rendered routine document.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportLink points at a stored export through a signed token.
type ExportLink struct {
	URL       string    `json:"url"`
	Token     string    `json:"token"`
	Filename  string    `json:"filename"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RoutineExportService renders routines as PDF or CSV and optionally keeps
// them behind signed download links.
type RoutineExportService struct {
	routines routineGetter
	csv      csvRenderer
	pdf      pdfRenderer
	storage  fileStorage
	signer   *storage.SignedURLSigner
	logger   *zap.Logger
	cfg      ExportConfig
	now      func() time.Time
}

// NewRoutineExportService constructs a RoutineExportService. storage and
// signer may be nil, which disables links.
func NewRoutineExportService(routines routineGetter, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *RoutineExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &RoutineExportService{
		routines: routines,
		csv:      csv,
		pdf:      pdf,
		storage:  store,
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Export renders the routine in the requested format.
func (s *RoutineExportService) Export(ctx context.Context, id, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatPDF
	}
	if format != ExportFormatPDF && format != ExportFormatCSV {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	r, err := s.routines.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	file := &ExportFile{Filename: exportFilename(*r, format)}
	switch format {
	case ExportFormatCSV:
		file.ContentType = "text/csv"
		file.Body, err = s.csv.RenderRoutine(*r)
	default:
		file.ContentType = "application/pdf"
		file.Body, err = s.pdf.RenderRoutine(*r, "Class Routine")
	}
	if err != nil {
		s.logger.Error("routine export failed", zap.String("routine_id", id), zap.String("format", format), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render routine")
	}
	return file, nil
}

// Link renders the routine, stores it and returns a signed download link.
func (s *RoutineExportService) Link(ctx context.Context, id, format string) (*ExportLink, error) {
	if s.storage == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "export links are disabled")
	}
	file, err := s.Export(ctx, id, format)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("%s/%s_%s", id, s.now().UTC().Format("20060102_150405"), file.Filename)
	rel, err := s.storage.Save(name, file.Body)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Generate(strings.ReplaceAll(id, ".", "_"), rel)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export link")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &ExportLink{
		URL:       fmt.Sprintf("%s/exports/%s", prefix, token),
		Token:     token,
		Filename:  file.Filename,
		ExpiresAt: expiresAt,
	}, nil
}

// Download resolves a signed token to the stored export.
func (s *RoutineExportService) Download(token string) (*ExportFile, error) {
	if s.storage == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "export links are disabled")
	}
	_, rel, _, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrLinkExpired) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "download link expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid download link")
	}
	body, err := s.storage.Read(rel)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}
	file := &ExportFile{Filename: rel[strings.LastIndex(rel, "/")+1:], Body: body, ContentType: "application/pdf"}
	if strings.HasSuffix(rel, "."+ExportFormatCSV) {
		file.ContentType = "text/csv"
	}
	return file, nil
}

// Cleanup removes stored exports older than the configured TTL.
func (s *RoutineExportService) Cleanup() ([]string, error) {
	if s.storage == nil {
		return nil, nil
	}
	deleted, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL)
	if err != nil {
		return nil, err
	}
	if len(deleted) > 0 {
		s.logger.Info("routine exports cleaned up", zap.Int("files", len(deleted)))
	}
	return deleted, nil
}

func exportFilename(r routine.Routine, format string) string {
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "|", "-")
	parts := []string{r.Department, r.Semester, string(r.Shift), r.Group}
	for i := range parts {
		parts[i] = replacer.Replace(strings.TrimSpace(parts[i]))
		if parts[i] == "" {
			parts[i] = "na"
		}
	}
	return strings.ToLower(strings.Join(parts, "_")) + "." + format
}
