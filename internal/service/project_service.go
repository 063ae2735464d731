package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/repository"
	appErrors "github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/errors"
)

type projectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, id string) (*models.Project, error)
	GetActiveByBatch(ctx context.Context, batchID string) (*models.Project, error)
	List(ctx context.Context, batchID string, status *models.ProjectStatus) ([]models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	Deactivate(ctx context.Context, id string) error
}

type submissionRepository interface {
	Create(ctx context.Context, sub *models.ProjectSubmission) error
	GetByID(ctx context.Context, id string) (*models.ProjectSubmission, error)
	GetActive(ctx context.Context, projectID, studentID string) (*models.ProjectSubmission, error)
	ListActiveByProject(ctx context.Context, projectID string) ([]models.ProjectSubmission, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.ProjectSubmission, error)
	Update(ctx context.Context, sub *models.ProjectSubmission) error
	Deactivate(ctx context.Context, id string) error
	DeactivateByProject(ctx context.Context, projectID string) error
	UpdateRanks(ctx context.Context, ranks map[string]int) error
}

type analyticsRepository interface {
	Upsert(ctx context.Context, a *models.ProjectAnalytics) error
	GetByProject(ctx context.Context, projectID string) (*models.ProjectAnalytics, error)
}

type projectStudentReader interface {
	GetByID(ctx context.Context, id string) (*models.Student, error)
	ListByBatch(ctx context.Context, batchID string) ([]models.Student, error)
}

type projectAttendanceReader interface {
	StudentAggregate(ctx context.Context, studentID, batchID string) (present, absent, late int, err error)
}

// CreateProjectRequest describes project assignment payload.
type CreateProjectRequest struct {
	Title         string              `json:"title" validate:"required,max=200"`
	Description   string              `json:"description" validate:"required"`
	BatchID       string              `json:"batch_id" validate:"required"`
	CourseID      string              `json:"course_id,omitempty"`
	AssignedDate  *time.Time          `json:"assigned_date,omitempty"`
	DeadlineDate  time.Time           `json:"deadline_date" validate:"required"`
	Requirements  []string            `json:"requirements,omitempty"`
	Deliverables  models.Deliverables `json:"deliverables,omitempty"`
	MaxScore      int                 `json:"max_score" validate:"min=1,max=100"`
	WeightProject int                 `json:"weight_project" validate:"min=0,max=100"`
	WeightAttend  int                 `json:"weight_attendance" validate:"min=0,max=100"`
	WeightTiming  int                 `json:"weight_timing" validate:"min=0,max=100"`
	Instructions  *string             `json:"instructions,omitempty"`
	Resources     []string            `json:"resources,omitempty"`
}

// UpdateProjectRequest describes project update payload. Once any submission
// exists only instructions, resources and status stay editable.
type UpdateProjectRequest struct {
	Title        *string               `json:"title,omitempty" validate:"omitempty,max=200"`
	Description  *string               `json:"description,omitempty"`
	DeadlineDate *time.Time            `json:"deadline_date,omitempty"`
	Requirements []string              `json:"requirements,omitempty"`
	Deliverables *models.Deliverables  `json:"deliverables,omitempty"`
	MaxScore     *int                  `json:"max_score,omitempty" validate:"omitempty,min=1,max=100"`
	Instructions *string               `json:"instructions,omitempty"`
	Resources    []string              `json:"resources,omitempty"`
	Status       *models.ProjectStatus `json:"status,omitempty" validate:"omitempty,project_status"`
}

// SubmitProjectRequest describes a student submission payload.
type SubmitProjectRequest struct {
	ProjectID     string                 `json:"project_id" validate:"required"`
	StudentID     string                 `json:"student_id" validate:"required"`
	Files         models.SubmissionFiles `json:"files,omitempty"`
	Description   *string                `json:"description,omitempty"`
	Notes         *string                `json:"notes,omitempty"`
	SubmittedDate *time.Time             `json:"submitted_date,omitempty"`
}

// GradeSubmissionRequest carries the teacher-entered raw score.
type GradeSubmissionRequest struct {
	Score    float64 `json:"score" validate:"min=0"`
	Feedback *string `json:"feedback,omitempty"`
}

// CompleteProjectRequest closes out a project.
type CompleteProjectRequest struct {
	ForceComplete   bool    `json:"force_complete"`
	CompletionNotes *string `json:"completion_notes,omitempty"`
}

// ProjectService runs the final-assessment pipeline: assignment over a
// finished batch, submissions with derived timing, weighted grading, rank
// and analytics recomputation.
type ProjectService struct {
	projects    projectRepository
	submissions submissionRepository
	analytics   analyticsRepository
	batches     batchReader
	students    projectStudentReader
	attendance  projectAttendanceReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewProjectService constructs ProjectService.
func NewProjectService(projects projectRepository, submissions submissionRepository, analytics analyticsRepository, batches batchReader, students projectStudentReader, attendance projectAttendanceReader, validate *validator.Validate, logger *zap.Logger) *ProjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ProjectService{
		projects:    projects,
		submissions: submissions,
		analytics:   analytics,
		batches:     batches,
		students:    students,
		attendance:  attendance,
		validator:   validate,
		logger:      logger,
	}
	svc.validator.RegisterValidation("project_status", func(fl validator.FieldLevel) bool {
		return models.ProjectStatus(fl.Field().String()).Valid()
	})
	return svc
}

// List returns live projects, optionally scoped to a batch or status.
func (s *ProjectService) List(ctx context.Context, batchID string, status *models.ProjectStatus) ([]models.Project, error) {
	projects, err := s.projects.List(ctx, batchID, status)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list projects")
	}
	return projects, nil
}

// Get returns one project.
func (s *ProjectService) Get(ctx context.Context, id string) (*models.Project, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	return project, nil
}

// Create assigns a project to a finished batch. At most one live project may
// exist per batch.
func (s *ProjectService) Create(ctx context.Context, principal models.Principal, req CreateProjectRequest) (*models.Project, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid project payload")
	}
	batch, err := s.batches.GetByID(ctx, req.BatchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	if !canWriteBatch(principal, batch) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "not allowed")
	}
	if !batch.IsFinished {
		return nil, appErrors.Clone(appErrors.ErrConflict, "batch must be finished before assigning a project")
	}
	if existing, err := s.projects.GetActiveByBatch(ctx, req.BatchID); err == nil && existing != nil {
		switch existing.Status {
		case models.ProjectAssigned, models.ProjectInProgress, models.ProjectCompleted:
			return nil, appErrors.Clone(appErrors.ErrConflict, "batch already has an active project")
		}
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing project")
	}
	assigned := time.Now().UTC()
	if req.AssignedDate != nil {
		assigned = req.AssignedDate.UTC()
	}
	if !req.DeadlineDate.After(assigned) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "deadline must be after the assigned date")
	}
	courseID := req.CourseID
	if courseID == "" {
		courseID = batch.CourseID
	}
	project := &models.Project{
		Title:         req.Title,
		Description:   req.Description,
		BatchID:       req.BatchID,
		CourseID:      courseID,
		AssignedDate:  assigned,
		DeadlineDate:  req.DeadlineDate.UTC(),
		Requirements:  req.Requirements,
		Deliverables:  req.Deliverables,
		MaxScore:      req.MaxScore,
		WeightProject: req.WeightProject,
		WeightAttend:  req.WeightAttend,
		WeightTiming:  req.WeightTiming,
		Status:        models.ProjectAssigned,
		AssignedBy:    principal.UserID,
		Instructions:  req.Instructions,
		Resources:     req.Resources,
		IsActive:      true,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create project")
	}
	if err := s.recomputeAnalytics(ctx, project); err != nil {
		s.logger.Warn("initial analytics compute failed", zap.String("project_id", project.ID), zap.Error(err))
	}
	return project, nil
}

// Update changes project fields; after the first submission only
// instructions, resources and status remain editable.
func (s *ProjectService) Update(ctx context.Context, principal models.Principal, id string, req UpdateProjectRequest) (*models.Project, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid project payload")
	}
	project, batch, err := s.loadProjectWithBatch(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canWriteProject(principal, project, batch) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "not allowed")
	}
	subs, err := s.submissions.ListActiveByProject(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	locked := len(subs) > 0
	if locked && (req.Title != nil || req.Description != nil || req.DeadlineDate != nil ||
		req.Requirements != nil || req.Deliverables != nil || req.MaxScore != nil) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only instructions, resources and status can change after submissions exist")
	}
	if req.Title != nil {
		project.Title = *req.Title
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if req.DeadlineDate != nil {
		if !req.DeadlineDate.After(project.AssignedDate) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "deadline must be after the assigned date")
		}
		project.DeadlineDate = req.DeadlineDate.UTC()
	}
	if req.Requirements != nil {
		project.Requirements = req.Requirements
	}
	if req.Deliverables != nil {
		project.Deliverables = *req.Deliverables
	}
	if req.MaxScore != nil {
		project.MaxScore = *req.MaxScore
	}
	if req.Instructions != nil {
		project.Instructions = req.Instructions
	}
	if req.Resources != nil {
		project.Resources = req.Resources
	}
	if req.Status != nil {
		project.Status = *req.Status
	}
	if err := s.projects.Update(ctx, project); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update project")
	}
	return project, nil
}

// Delete retires a project. Teachers are refused once submissions exist;
// admins soft-cancel the submissions along with the project.
func (s *ProjectService) Delete(ctx context.Context, principal models.Principal, id string) error {
	project, batch, err := s.loadProjectWithBatch(ctx, id)
	if err != nil {
		return err
	}
	if !canWriteProject(principal, project, batch) {
		return appErrors.Clone(appErrors.ErrUnauthorized, "not allowed")
	}
	subs, err := s.submissions.ListActiveByProject(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	if len(subs) > 0 {
		if !principal.IsAdmin() {
			return appErrors.Clone(appErrors.ErrDependency, "project has submissions; only admins can delete it")
		}
		if err := s.submissions.DeactivateByProject(ctx, id); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel submissions")
		}
	}
	if err := s.projects.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete project")
	}
	return nil
}

// Submit records a student's work. The attendance score and timing class are
// derived at submission time and frozen on the row.
func (s *ProjectService) Submit(ctx context.Context, principal models.Principal, req SubmitProjectRequest) (*models.ProjectSubmission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	project, err := s.Get(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	student, err := s.students.GetByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !canSubmitProject(principal, student, project) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "not allowed")
	}
	if student.BatchID != project.BatchID {
		return nil, appErrors.Clone(appErrors.ErrHierarchyMismatch, "student is not in the project's batch")
	}
	if existing, err := s.submissions.GetActive(ctx, req.ProjectID, req.StudentID); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already has an active submission")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing submission")
	}
	attendanceScore, err := s.attendanceScoreFor(ctx, req.StudentID, project.BatchID)
	if err != nil {
		return nil, err
	}
	submitted := time.Now().UTC()
	if req.SubmittedDate != nil {
		submitted = req.SubmittedDate.UTC()
	}
	days := daysFromDeadline(project.DeadlineDate, submitted)
	sub := &models.ProjectSubmission{
		ProjectID:        req.ProjectID,
		StudentID:        req.StudentID,
		BatchID:          project.BatchID,
		SubmittedDate:    submitted,
		Files:            req.Files,
		Description:      req.Description,
		Notes:            req.Notes,
		Status:           models.SubmissionSubmitted,
		SubmissionTiming: timingFor(days),
		DaysFromDeadline: days,
		AttendanceScore:  &attendanceScore,
		Version:          1,
		IsActive:         true,
	}
	if err := s.submissions.Create(ctx, sub); err != nil {
		if repository.IsUniqueViolation(err, "") {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already has an active submission")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create submission")
	}
	if project.Status == models.ProjectAssigned {
		project.Status = models.ProjectInProgress
		if err := s.projects.Update(ctx, project); err != nil {
			s.logger.Warn("failed to advance project status", zap.String("project_id", project.ID), zap.Error(err))
		}
	}
	if err := s.recomputeAnalytics(ctx, project); err != nil {
		s.logger.Warn("analytics recompute failed", zap.String("project_id", project.ID), zap.Error(err))
	}
	return sub, nil
}

// Resubmit retires the returned submission and inserts its successor with a
// bumped version pointing back at the original.
func (s *ProjectService) Resubmit(ctx context.Context, principal models.Principal, submissionID string, req SubmitProjectRequest) (*models.ProjectSubmission, error) {
	previous, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if previous.Status != models.SubmissionReturned {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only returned submissions can be resubmitted")
	}
	project, err := s.Get(ctx, previous.ProjectID)
	if err != nil {
		return nil, err
	}
	student, err := s.students.GetByID(ctx, previous.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !canSubmitProject(principal, student, project) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "not allowed")
	}
	if err := s.submissions.Deactivate(ctx, previous.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to retire previous submission")
	}
	attendanceScore, err := s.attendanceScoreFor(ctx, previous.StudentID, project.BatchID)
	if err != nil {
		return nil, err
	}
	submitted := time.Now().UTC()
	if req.SubmittedDate != nil {
		submitted = req.SubmittedDate.UTC()
	}
	days := daysFromDeadline(project.DeadlineDate, submitted)
	sub := &models.ProjectSubmission{
		ProjectID:        previous.ProjectID,
		StudentID:        previous.StudentID,
		BatchID:          previous.BatchID,
		SubmittedDate:    submitted,
		Files:            req.Files,
		Description:      req.Description,
		Notes:            req.Notes,
		Status:           models.SubmissionResubmitted,
		SubmissionTiming: timingFor(days),
		DaysFromDeadline: days,
		AttendanceScore:  &attendanceScore,
		Version:          previous.Version + 1,
		PreviousID:       &previous.ID,
		IsActive:         true,
	}
	if err := s.submissions.Create(ctx, sub); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create resubmission")
	}
	if err := s.recomputeAnalytics(ctx, project); err != nil {
		s.logger.Warn("analytics recompute failed", zap.String("project_id", project.ID), zap.Error(err))
	}
	return sub, nil
}

// Submissions lists a project's live submissions.
func (s *ProjectService) Submissions(ctx context.Context, projectID string) ([]models.ProjectSubmission, error) {
	subs, err := s.submissions.ListActiveByProject(ctx, projectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return subs, nil
}

// StartReview advances a submission into the review state.
func (s *ProjectService) StartReview(ctx context.Context, principal models.Principal, submissionID string) (*models.ProjectSubmission, error) {
	sub, project, batch, err := s.loadSubmissionChain(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if !canGradeSubmission(principal, project, batch) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "not allowed")
	}
	if sub.Status != models.SubmissionSubmitted && sub.Status != models.SubmissionResubmitted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "submission is not awaiting review")
	}
	now := time.Now().UTC()
	sub.Status = models.SubmissionUnderReview
	sub.ReviewedBy = &principal.UserID
	sub.ReviewedDate = &now
	if err := s.submissions.Update(ctx, sub); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update submission")
	}
	return sub, nil
}

// Return hands a reviewed submission back for rework.
func (s *ProjectService) Return(ctx context.Context, principal models.Principal, submissionID string, feedback *string) (*models.ProjectSubmission, error) {
	sub, project, batch, err := s.loadSubmissionChain(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if !canGradeSubmission(principal, project, batch) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "not allowed")
	}
	if sub.Status != models.SubmissionGraded && sub.Status != models.SubmissionUnderReview {
		return nil, appErrors.Clone(appErrors.ErrConflict, "submission cannot be returned from its current state")
	}
	sub.Status = models.SubmissionReturned
	if feedback != nil {
		sub.Feedback = feedback
	}
	if err := s.submissions.Update(ctx, sub); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update submission")
	}
	return sub, nil
}

// Grade applies the weighted formula to a submission, then recomputes ranks
// and analytics for the project.
func (s *ProjectService) Grade(ctx context.Context, principal models.Principal, submissionID string, req GradeSubmissionRequest) (*models.ProjectSubmission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grading payload")
	}
	sub, project, batch, err := s.loadSubmissionChain(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if !canGradeSubmission(principal, project, batch) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "not allowed")
	}
	if req.Score > float64(project.MaxScore) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "score exceeds the project's maximum")
	}
	s.applyGrade(sub, project, req.Score, principal.UserID, req.Feedback)
	if err := s.submissions.Update(ctx, sub); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store grade")
	}
	if err := s.recomputeRanks(ctx, project.ID); err != nil {
		s.logger.Warn("rank recompute failed", zap.String("project_id", project.ID), zap.Error(err))
	}
	if err := s.recomputeAnalytics(ctx, project); err != nil {
		s.logger.Warn("analytics recompute failed", zap.String("project_id", project.ID), zap.Error(err))
	}
	return sub, nil
}

// Complete transitions a project to completed. With force, every ungraded
// submission is auto-graded at 80% of the maximum first.
func (s *ProjectService) Complete(ctx context.Context, principal models.Principal, projectID string, req CompleteProjectRequest) (*models.Project, error) {
	project, batch, err := s.loadProjectWithBatch(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !canWriteProject(principal, project, batch) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "not allowed")
	}
	if project.Status == models.ProjectCompleted || project.Status == models.ProjectArchived {
		return nil, appErrors.Clone(appErrors.ErrConflict, "project is already closed")
	}
	subs, err := s.submissions.ListActiveByProject(ctx, projectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	if len(subs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "no submissions to complete against")
	}
	roster, err := s.students.ListByBatch(ctx, project.BatchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch roster")
	}
	pending := len(roster) - len(subs)
	if pending > 0 && !req.ForceComplete {
		return nil, appErrors.Clone(appErrors.ErrConflict, "students are still pending; use force complete")
	}
	if req.ForceComplete {
		autoFeedback := "Auto-graded during project completion"
		for i := range subs {
			if subs[i].Score != nil {
				continue
			}
			s.applyGrade(&subs[i], project, 0.8*float64(project.MaxScore), principal.UserID, &autoFeedback)
			if err := s.submissions.Update(ctx, &subs[i]); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to auto-grade submission")
			}
		}
		if err := s.recomputeRanks(ctx, projectID); err != nil {
			s.logger.Warn("rank recompute failed", zap.String("project_id", projectID), zap.Error(err))
		}
	}
	now := time.Now().UTC()
	project.Status = models.ProjectCompleted
	project.CompletedDate = &now
	project.CompletedBy = &principal.UserID
	project.CompletionNotes = req.CompletionNotes
	if err := s.projects.Update(ctx, project); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete project")
	}
	if err := s.recomputeAnalytics(ctx, project); err != nil {
		s.logger.Warn("analytics recompute failed", zap.String("project_id", projectID), zap.Error(err))
	}
	return project, nil
}

// Analytics returns the cached per-project rollup.
func (s *ProjectService) Analytics(ctx context.Context, projectID string) (*models.ProjectAnalytics, error) {
	row, err := s.analytics.GetByProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "analytics not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load analytics")
	}
	return row, nil
}

// applyGrade computes the weighted final score in place.
func (s *ProjectService) applyGrade(sub *models.ProjectSubmission, project *models.Project, score float64, gradedBy string, feedback *string) {
	attendance := 0.0
	if sub.AttendanceScore != nil {
		attendance = *sub.AttendanceScore
	}
	final := finalScore(score, project.MaxScore, attendance, sub.SubmissionTiming, sub.DaysFromDeadline,
		project.WeightProject, project.WeightAttend, project.WeightTiming)
	now := time.Now().UTC()
	sub.Score = &score
	sub.FinalScore = &final
	sub.Status = models.SubmissionGraded
	sub.GradedBy = &gradedBy
	sub.GradedDate = &now
	if feedback != nil {
		sub.Feedback = feedback
	}
}

// finalScore is the weighted grading formula: the raw score, the attendance
// percentage and a timing score are each scaled by their weight and summed,
// rounded and clamped to [0,100].
func finalScore(score float64, maxScore int, attendanceScore float64, timing models.SubmissionTiming, days int, wProject, wAttend, wTiming int) float64 {
	projectPart := score / float64(maxScore) * 100 * float64(wProject) / 100
	attendancePart := attendanceScore * float64(wAttend) / 100
	timingPart := timingScore(timing, days) * float64(wTiming) / 100
	final := math.Round(projectPart + attendancePart + timingPart)
	if final < 0 {
		return 0
	}
	if final > 100 {
		return 100
	}
	return final
}

// timingScore rewards early delivery and decays late ones by 10 points per day.
func timingScore(timing models.SubmissionTiming, days int) float64 {
	switch timing {
	case models.TimingEarly:
		return 100
	case models.TimingOnTime:
		return 90
	default:
		late := 70 - absInt(days)*10
		if late < 0 {
			return 0
		}
		return float64(late)
	}
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// daysFromDeadline is positive when the submission landed early.
func daysFromDeadline(deadline, submitted time.Time) int {
	return int(math.Ceil(deadline.Sub(submitted).Hours() / 24))
}

func timingFor(days int) models.SubmissionTiming {
	switch {
	case days > 0:
		return models.TimingEarly
	case days == 0:
		return models.TimingOnTime
	default:
		return models.TimingLate
	}
}

// letterGrade buckets a final score at the 90/80/70/60/50/40 boundaries.
func letterGrade(final float64) string {
	switch {
	case final >= 90:
		return "A+"
	case final >= 80:
		return "A"
	case final >= 70:
		return "B+"
	case final >= 60:
		return "B"
	case final >= 50:
		return "C+"
	case final >= 40:
		return "C"
	default:
		return "F"
	}
}

func (s *ProjectService) attendanceScoreFor(ctx context.Context, studentID, batchID string) (float64, error) {
	present, absent, late, err := s.attendance.StudentAggregate(ctx, studentID, batchID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate attendance")
	}
	total := present + absent + late
	if total == 0 {
		return 0, nil
	}
	return math.Round(float64(present) / float64(total) * 100), nil
}

// recomputeRanks orders every graded live submission by final score and
// assigns 1..N, ties resolved by storage order.
func (s *ProjectService) recomputeRanks(ctx context.Context, projectID string) error {
	subs, err := s.submissions.ListActiveByProject(ctx, projectID)
	if err != nil {
		return err
	}
	graded := make([]models.ProjectSubmission, 0, len(subs))
	for _, sub := range subs {
		if sub.FinalScore != nil {
			graded = append(graded, sub)
		}
	}
	sort.SliceStable(graded, func(i, j int) bool {
		return *graded[i].FinalScore > *graded[j].FinalScore
	})
	ranks := make(map[string]int, len(graded))
	for i, sub := range graded {
		ranks[sub.ID] = i + 1
	}
	return s.submissions.UpdateRanks(ctx, ranks)
}

// recomputeAnalytics rebuilds the per-project rollup from the live
// submission set. The write is idempotent; a concurrent recompute simply
// overwrites with equivalent data.
func (s *ProjectService) recomputeAnalytics(ctx context.Context, project *models.Project) error {
	subs, err := s.submissions.ListActiveByProject(ctx, project.ID)
	if err != nil {
		return err
	}
	roster, err := s.students.ListByBatch(ctx, project.BatchID)
	if err != nil {
		return err
	}

	analytics := &models.ProjectAnalytics{
		ProjectID:      project.ID,
		BatchID:        project.BatchID,
		TotalStudents:  len(roster),
		SubmittedCount: len(subs),
		PendingCount:   len(roster) - len(subs),
	}

	var scores, attendanceScores, finalScores []float64
	type scored struct {
		sub   models.ProjectSubmission
		final float64
	}
	var gradedSubs []scored
	for _, sub := range subs {
		switch sub.SubmissionTiming {
		case models.TimingEarly:
			analytics.SubmissionStats.Early++
		case models.TimingOnTime:
			analytics.SubmissionStats.OnTime++
		case models.TimingLate:
			analytics.SubmissionStats.Late++
		}
		if sub.Score != nil {
			analytics.GradedCount++
			scores = append(scores, *sub.Score)
		}
		if sub.AttendanceScore != nil {
			attendanceScores = append(attendanceScores, *sub.AttendanceScore)
		}
		if sub.FinalScore != nil {
			finalScores = append(finalScores, *sub.FinalScore)
			gradedSubs = append(gradedSubs, scored{sub: sub, final: *sub.FinalScore})
			switch letterGrade(*sub.FinalScore) {
			case "A+":
				analytics.GradeDistribution.APlus++
			case "A":
				analytics.GradeDistribution.A++
			case "B+":
				analytics.GradeDistribution.BPlus++
			case "B":
				analytics.GradeDistribution.B++
			case "C+":
				analytics.GradeDistribution.CPlus++
			case "C":
				analytics.GradeDistribution.C++
			default:
				analytics.GradeDistribution.F++
			}
		}
	}

	analytics.ScoreStats = summarise(scores)
	analytics.AttendanceStats = summarise(attendanceScores)
	analytics.FinalScoreStats = summarise(finalScores)

	sort.SliceStable(gradedSubs, func(i, j int) bool { return gradedSubs[i].final > gradedSubs[j].final })
	top := len(gradedSubs)
	if top > 5 {
		top = 5
	}
	performers := make(models.TopPerformers, 0, top)
	for i := 0; i < top; i++ {
		performers = append(performers, models.TopPerformer{
			StudentID:    gradedSubs[i].sub.StudentID,
			SubmissionID: gradedSubs[i].sub.ID,
			FinalScore:   gradedSubs[i].final,
			Rank:         i + 1,
		})
	}
	analytics.TopPerformers = performers

	if analytics.TotalStudents > 0 {
		analytics.CompletionRate = int(math.Round(float64(analytics.SubmittedCount) / float64(analytics.TotalStudents) * 100))
	}
	if analytics.SubmittedCount > 0 {
		onTime := analytics.SubmissionStats.Early + analytics.SubmissionStats.OnTime
		analytics.OnTimeSubmissionRate = int(math.Round(float64(onTime) / float64(analytics.SubmittedCount) * 100))
	}

	return s.analytics.Upsert(ctx, analytics)
}

// summarise reduces a score series to average, extremes and median.
func summarise(values []float64) models.ScoreStats {
	if len(values) == 0 {
		return models.ScoreStats{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mid := len(sorted) / 2
	median := sorted[mid]
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}
	return models.ScoreStats{
		Average: math.Round(sum/float64(len(sorted))*10) / 10,
		Highest: sorted[len(sorted)-1],
		Lowest:  sorted[0],
		Median:  median,
	}
}

func (s *ProjectService) loadProjectWithBatch(ctx context.Context, id string) (*models.Project, *models.Batch, error) {
	project, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	batch, err := s.batches.GetByID(ctx, project.BatchID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	return project, batch, nil
}

func (s *ProjectService) loadSubmissionChain(ctx context.Context, submissionID string) (*models.ProjectSubmission, *models.Project, *models.Batch, error) {
	sub, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	project, batch, err := s.loadProjectWithBatch(ctx, sub.ProjectID)
	if err != nil {
		return nil, nil, nil, err
	}
	return sub, project, batch, nil
}
