package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
)

// ExportFormat selects the rendered document type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type exportClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type exportSlotReader interface {
	ListByClass(ctx context.Context, classID string) ([]models.TimetableSlotDetail, error)
}

type tableRenderer interface {
	Render(table export.Table) ([]byte, error)
}

// ExportFile is a rendered timetable ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders persisted class timetables as CSV or PDF.
type ExportService struct {
	classes  exportClassReader
	slots    exportSlotReader
	calendar *config.Calendar
	grid     []timetable.TimeSlot
	csv      tableRenderer
	pdf      tableRenderer
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the
// package defaults.
func NewExportService(classes exportClassReader, slots exportSlotReader, calendar *config.Calendar, logger *zap.Logger, csv, pdf tableRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if calendar == nil {
		calendar = config.DefaultCalendar()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		classes:  classes,
		slots:    slots,
		calendar: calendar,
		grid:     calendar.Grid(),
		csv:      csv,
		pdf:      pdf,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ParseExportFormat normalises a format name; empty means CSV.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ExportFormatCSV:
		return ExportFormatCSV, nil
	case ExportFormatPDF:
		return ExportFormatPDF, nil
	}
	return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", raw))
}

// ClassTimetable renders the persisted timetable of one class.
func (s *ExportService) ClassTimetable(ctx context.Context, classID string, format ExportFormat) (*ExportFile, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	slots, err := s.slots.ListByClass(ctx, class.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class timetable")
	}

	table := s.buildTable(class, slots)

	file := &ExportFile{Filename: s.buildFilename(class, format)}
	switch format {
	case ExportFormatCSV:
		file.ContentType = "text/csv"
		file.Body, err = s.csv.Render(table)
	case ExportFormatPDF:
		file.ContentType = "application/pdf"
		file.Body, err = s.pdf.Render(table)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable")
	}

	s.logger.Info("timetable exported",
		zap.String("class_id", class.ID),
		zap.String("format", string(format)),
		zap.Int("bytes", len(file.Body)),
	)
	return file, nil
}

// buildTable lays out one row per period and one column per working day.
func (s *ExportService) buildTable(class *models.Class, slots []models.TimetableSlotDetail) export.Table {
	type cellKey struct {
		day    timetable.Day
		period int
	}
	cells := make(map[cellKey]string, len(slots))
	for _, slot := range slots {
		cells[cellKey{timetable.Day(slot.DayOfWeek), slot.Period}] = lessonLabel(slot)
	}

	headers := make([]string, 0, len(s.calendar.WorkingDays)+1)
	headers = append(headers, "Period")
	for _, day := range s.calendar.WorkingDays {
		headers = append(headers, titleCase(day.String()))
	}

	rows := make([][]string, 0, len(s.calendar.Periods))
	for _, period := range s.calendar.Periods {
		row := make([]string, 0, len(headers))
		row = append(row, fmt.Sprintf("%d (%s-%s)", period.Number, period.Start, period.End))
		for _, day := range s.calendar.WorkingDays {
			slot, ok := timetable.Lookup(s.grid, day, period.Number)
			switch {
			case ok && slot.IsBreak:
				label := slot.BreakLabel
				if label == "" {
					label = "Break"
				}
				row = append(row, label)
			default:
				row = append(row, cells[cellKey{day, period.Number}])
			}
		}
		rows = append(rows, row)
	}

	return export.Table{
		Title:   fmt.Sprintf("Timetable %s", class.Name),
		Headers: headers,
		Rows:    rows,
	}
}

func (s *ExportService) buildFilename(class *models.Class, format ExportFormat) string {
	timestamp := s.now().Format("20060102_150405")
	return fmt.Sprintf("timetable_%s_%s.%s", sanitizeFilename(class.Name), timestamp, format)
}

func lessonLabel(slot models.TimetableSlotDetail) string {
	subject := slot.SubjectName
	if subject == "" {
		subject = slot.SubjectID
	}
	teacher := slot.TeacherName
	if teacher == "" {
		teacher = slot.TeacherID
	}
	return fmt.Sprintf("%s / %s", subject, teacher)
}

func titleCase(raw string) string {
	if raw == "" {
		return raw
	}
	lower := strings.ToLower(raw)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
