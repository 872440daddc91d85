package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/uec-api/internal/models"
	appErrors "github.com/noah-isme/uec-api/pkg/errors"
	"github.com/noah-isme/uec-api/pkg/export"
)

// Export formats supported for schedule rosters.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

var rosterHeaders = []string{"Student", "Enrolled", "Attended", "Completed", "Rated"}

// rosterPageSize is the enrollment batch size when assembling a roster.
const rosterPageSize = 100

type exportEnrollmentReader interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

type exportScheduleReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.ScheduleDetail, error)
}

type exportRatingReader interface {
	ExistsForEnrollment(ctx context.Context, enrollmentID string) (bool, error)
}

type exportUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// ExportResult bundles the rendered document with response metadata.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// ExportService renders schedule rosters as CSV or PDF documents.
type ExportService struct {
	enrollments exportEnrollmentReader
	schedules   exportScheduleReader
	ratings     exportRatingReader
	users       exportUserReader
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	enabled     bool
	logger      *zap.Logger
}

// NewExportService constructs ExportService.
func NewExportService(enrollments exportEnrollmentReader, schedules exportScheduleReader, ratings exportRatingReader, users exportUserReader, enabled bool, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		enrollments: enrollments,
		schedules:   schedules,
		ratings:     ratings,
		users:       users,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		enabled:     enabled,
		logger:      logger,
	}
}

// Enabled reports whether roster exports are switched on.
func (s *ExportService) Enabled() bool {
	return s != nil && s.enabled
}

// Roster renders the enrollment roster of one schedule in the requested
// format.
func (s *ExportService) Roster(ctx context.Context, scheduleID, format string) (*ExportResult, error) {
	if !s.Enabled() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "roster exports are disabled")
	}
	if format != FormatCSV && format != FormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	schedule, err := s.schedules.FindDetailByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}

	var enrollments []models.EnrollmentDetail
	for page := 1; ; page++ {
		batch, total, err := s.enrollments.List(ctx, models.EnrollmentFilter{
			ScheduleID: scheduleID,
			Page:       page,
			PageSize:   rosterPageSize,
			SortBy:     "enrollment_date",
			SortOrder:  "ASC",
		})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list roster enrollments")
		}
		enrollments = append(enrollments, batch...)
		if len(batch) == 0 || len(enrollments) >= total {
			break
		}
	}

	data := export.Dataset{Headers: rosterHeaders}
	for _, enrollment := range enrollments {
		studentName := enrollment.StudentID
		if user, err := s.users.FindByID(ctx, enrollment.StudentID); err == nil {
			studentName = user.FullName
		}
		rated, err := s.ratings.ExistsForEnrollment(ctx, enrollment.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check rating")
		}
		data.Rows = append(data.Rows, []string{
			studentName,
			enrollment.EnrollmentDate.Format("2006-01-02"),
			strconv.FormatBool(enrollment.Attended),
			strconv.FormatBool(enrollment.Completed),
			strconv.FormatBool(rated),
		})
	}

	title := fmt.Sprintf("%s roster", schedule.ActivityName)
	filename := fmt.Sprintf("roster-%s.%s", schedule.ActivityCode, format)

	switch format {
	case FormatPDF:
		content, err := s.pdf.Render(data, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster pdf")
		}
		return &ExportResult{Content: content, ContentType: "application/pdf", Filename: filename}, nil
	default:
		content, err := s.csv.Render(data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster csv")
		}
		return &ExportResult{Content: content, ContentType: "text/csv", Filename: filename}, nil
	}
}
