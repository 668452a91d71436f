package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/akademos/academy-api/internal/models"
	appErrors "github.com/akademos/academy-api/pkg/errors"
	"github.com/akademos/academy-api/pkg/export"
)

type rosterReader interface {
	ListByGroup(ctx context.Context, groupID string) ([]models.EnrollmentDetail, error)
}

type groupDetailReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.CourseGroupDetail, error)
}

// ExportResult carries rendered export bytes with file metadata.
type ExportResult struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ExportService renders group rosters as CSV or PDF downloads.
type ExportService struct {
	roster rosterReader
	groups groupDetailReader
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// NewExportService constructs ExportService.
func NewExportService(roster rosterReader, groups groupDetailReader, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		roster: roster,
		groups: groups,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
	}
}

// GroupRoster exports the enrollment roster of a group in the requested
// format ("csv" or "pdf").
func (s *ExportService) GroupRoster(ctx context.Context, groupID, format string) (*ExportResult, error) {
	group, err := s.groups.FindDetailByID(ctx, groupID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course group")
	}

	roster, err := s.roster.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group roster")
	}

	dataset := export.Dataset{
		Headers: []string{"Student", "Email", "Payment Status", "Enrolled At"},
	}
	for _, row := range roster {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student":        row.StudentName,
			"Email":          row.StudentEmail,
			"Payment Status": string(row.PaymentStatus),
			"Enrolled At":    row.EnrolledAt.Format("2006-01-02 15:04"),
		})
	}

	base := fmt.Sprintf("roster_%s", groupID)
	switch strings.ToLower(format) {
	case "csv", "":
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{FileName: base + ".csv", ContentType: "text/csv", Data: data}, nil
	case "pdf":
		title := fmt.Sprintf("%s roster", group.SubjectName)
		data, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{FileName: base + ".pdf", ContentType: "application/pdf", Data: data}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}
