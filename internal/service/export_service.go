package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
	appErrors "github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/errors"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/export"
)

// ExportFormat selects the rendered document type.
type ExportFormat string

const (
	FormatCSV ExportFormat = "csv"
	FormatPDF ExportFormat = "pdf"
)

// ExportResult carries rendered bytes plus serving metadata.
type ExportResult struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ExportService renders attendance sheets and project result reports.
type ExportService struct {
	students    rosterReader
	batches     attendanceBatchReader
	attendance  projectAttendanceReader
	projects    projectRepository
	submissions submissionRepository
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	logger      *zap.Logger
}

// NewExportService constructs ExportService.
func NewExportService(students rosterReader, batches attendanceBatchReader, attendance projectAttendanceReader, projects projectRepository, submissions submissionRepository, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		students:    students,
		batches:     batches,
		attendance:  attendance,
		projects:    projects,
		submissions: submissions,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
	}
}

// AttendanceSheet renders per-student attendance totals for one batch.
func (s *ExportService) AttendanceSheet(ctx context.Context, principal models.Principal, batchID string, format ExportFormat) (*ExportResult, error) {
	batch, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	if !canWriteBatch(principal, batch) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "not allowed")
	}
	roster, err := s.students.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch roster")
	}

	headers := []string{"Roll No", "Name", "Present", "Absent", "Late", "Attendance %"}
	rows := make([]map[string]string, 0, len(roster))
	for _, student := range roster {
		present, absent, late, err := s.attendance.StudentAggregate(ctx, student.ID, batchID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate attendance")
		}
		rate := 0.0
		if total := present + absent + late; total > 0 {
			rate = float64(present) / float64(total) * 100
		}
		rows = append(rows, map[string]string{
			"Roll No":      student.RollNo,
			"Name":         student.Name,
			"Present":      fmt.Sprintf("%d", present),
			"Absent":       fmt.Sprintf("%d", absent),
			"Late":         fmt.Sprintf("%d", late),
			"Attendance %": fmt.Sprintf("%.1f", rate),
		})
	}
	dataset := export.Dataset{Headers: headers, Rows: rows}
	name := fmt.Sprintf("attendance-%s-%s", batch.Name, time.Now().UTC().Format("2006-01-02"))
	return s.render(dataset, format, name, "Attendance Report: "+batch.Name)
}

// ProjectReport renders the graded results table for one project.
func (s *ExportService) ProjectReport(ctx context.Context, principal models.Principal, projectID string, format ExportFormat) (*ExportResult, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	batch, err := s.batches.GetByID(ctx, project.BatchID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	if !canWriteProject(principal, project, batch) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "not allowed")
	}
	subs, err := s.submissions.ListActiveByProject(ctx, projectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submissions")
	}

	headers := []string{"Rank", "Roll No", "Name", "Score", "Attendance", "Timing", "Final", "Grade"}
	rows := make([]map[string]string, 0, len(subs))
	for _, sub := range subs {
		student, err := s.students.GetByID(ctx, sub.StudentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		row := map[string]string{
			"Roll No": student.RollNo,
			"Name":    student.Name,
			"Timing":  string(sub.SubmissionTiming),
		}
		if sub.Rank != nil {
			row["Rank"] = fmt.Sprintf("%d", *sub.Rank)
		}
		if sub.Score != nil {
			row["Score"] = fmt.Sprintf("%.1f/%d", *sub.Score, project.MaxScore)
		}
		if sub.AttendanceScore != nil {
			row["Attendance"] = fmt.Sprintf("%.1f", *sub.AttendanceScore)
		}
		if sub.FinalScore != nil {
			row["Final"] = fmt.Sprintf("%.1f", *sub.FinalScore)
			row["Grade"] = letterGrade(*sub.FinalScore)
		}
		rows = append(rows, row)
	}
	dataset := export.Dataset{Headers: headers, Rows: rows}
	name := fmt.Sprintf("project-report-%s", time.Now().UTC().Format("2006-01-02"))
	return s.render(dataset, format, name, "Project Results: "+project.Title)
}

func (s *ExportService) render(dataset export.Dataset, format ExportFormat, baseName, title string) (*ExportResult, error) {
	switch format {
	case FormatPDF:
		data, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{FileName: baseName + ".pdf", ContentType: "application/pdf", Data: data}, nil
	case FormatCSV:
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{FileName: baseName + ".csv", ContentType: "text/csv", Data: data}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}
