package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/course-cms-api/internal/models"
	appErrors "github.com/noah-isme/course-cms-api/pkg/errors"
	"github.com/noah-isme/course-cms-api/pkg/export"
	"github.com/noah-isme/course-cms-api/pkg/storage"
)

// ExportFormat selects the rendered file type.
type ExportFormat string

// ExportType selects the dataset to render.
type ExportType string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"

	ExportTypePayments    ExportType = "payments"
	ExportTypeOverdue     ExportType = "overdue"
	ExportTypeEnrollments ExportType = "enrollments"
)

// ExportRequest describes one report generation call.
type ExportRequest struct {
	Type   ExportType   `json:"type" validate:"required,oneof=payments overdue enrollments"`
	Format ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	ID           string       `json:"id"`
	RelativePath string       `json:"-"`
	Token        string       `json:"token"`
	URL          string       `json:"url"`
	Format       ExportFormat `json:"format"`
	ExpiresAt    time.Time    `json:"expires_at"`
}

type paymentExporter interface {
	ListAll(ctx context.Context) ([]models.Payment, error)
	ListOverdue(ctx context.Context, before time.Time) ([]models.Payment, error)
}

type enrollmentExporter interface {
	ListAll(ctx context.Context) ([]models.StudentCallDetail, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
}

// ExportService renders payment and enrollment reports and persists the
// generated files behind signed download tokens.
type ExportService struct {
	payments    paymentExporter
	enrollments enrollmentExporter
	storage     fileStorage
	csv         csvRenderer
	pdf         pdfRenderer
	signer      *storage.SignedURLSigner
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(payments paymentExporter, enrollments enrollmentExporter, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, validate *validator.Validate, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ExportService{
		payments:    payments,
		enrollments: enrollments,
		storage:     files,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		signer:      signer,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
	}
}

// Generate builds the requested dataset and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export request")
	}

	dataset, title, err := s.buildDataset(ctx, req.Type)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build report dataset")
	}

	var payload []byte
	switch req.Format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	exportID := uuid.NewString()
	filename := fmt.Sprintf("%s_%s.%s", req.Type, time.Now().UTC().Format("20060102_150405"), req.Format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store report")
	}

	token, expiresAt, err := s.signer.Generate(exportID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download URL")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.logger.Info("report generated",
		zap.String("type", string(req.Type)),
		zap.String("format", string(req.Format)),
		zap.String("path", relPath))

	return &ExportResult{
		ID:           exportID,
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/download/%s", prefix, token),
		Format:       req.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// OpenByToken validates a download token and returns a handle to the file.
func (s *ExportService) OpenByToken(token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export file not found")
	}
	return file, nil
}

func (s *ExportService) buildDataset(ctx context.Context, typ ExportType) (export.Dataset, string, error) {
	switch typ {
	case ExportTypePayments:
		rows, err := s.payments.ListAll(ctx)
		if err != nil {
			return export.Dataset{}, "", err
		}
		return paymentDataset(rows), "Payment Schedule Report", nil
	case ExportTypeOverdue:
		rows, err := s.payments.ListOverdue(ctx, startOfDay(time.Now().UTC()))
		if err != nil {
			return export.Dataset{}, "", err
		}
		return paymentDataset(rows), "Overdue Payments Report", nil
	case ExportTypeEnrollments:
		rows, err := s.enrollments.ListAll(ctx)
		if err != nil {
			return export.Dataset{}, "", err
		}
		return enrollmentDataset(rows), "Call Enrollment Report", nil
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported export type %s", typ)
	}
}

func paymentDataset(rows []models.Payment) export.Dataset {
	dataRows := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		paid := ""
		if row.PaymentDate != nil {
			paid = row.PaymentDate.UTC().Format("2006-01-02")
		}
		dataRows = append(dataRows, map[string]string{
			"Enrollment": row.GroupStudentID,
			"Month":      fmt.Sprintf("%d", row.Month),
			"Amount":     row.Amount.StringFixed(2),
			"Status":     string(row.Status),
			"Due Date":   row.DueDate.UTC().Format("2006-01-02"),
			"Paid On":    paid,
		})
	}
	return export.Dataset{
		Headers: []string{"Enrollment", "Month", "Amount", "Status", "Due Date", "Paid On"},
		Rows:    dataRows,
	}
}

func enrollmentDataset(rows []models.StudentCallDetail) export.Dataset {
	dataRows := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		dataRows = append(dataRows, map[string]string{
			"Student":    row.StudentName,
			"Course":     row.CourseName,
			"Call ID":    row.CallID,
			"Capacity":   fmt.Sprintf("%d", row.CallCapacity),
			"Applied At": row.AppliedAt.UTC().Format(time.RFC3339),
		})
	}
	return export.Dataset{
		Headers: []string{"Student", "Course", "Call ID", "Capacity", "Applied At"},
		Rows:    dataRows,
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
