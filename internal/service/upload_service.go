package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
	appErrors "github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/errors"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/storage"
)

// UploadService attaches submission artifacts to their metadata row and
// streams them back on download. Blobs live on local disk; the submissions
// table only carries their descriptors.
type UploadService struct {
	submissions submissionRepository
	store       *storage.LocalStorage
	maxBytes    int64
	logger      *zap.Logger
}

// NewUploadService constructs UploadService.
func NewUploadService(submissions submissionRepository, store *storage.LocalStorage, maxBytes int64, logger *zap.Logger) *UploadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBytes <= 0 {
		maxBytes = 25 << 20
	}
	return &UploadService{submissions: submissions, store: store, maxBytes: maxBytes, logger: logger}
}

// Attach stores the stream and appends its descriptor to the submission.
// Only the submitting student, a teacher, or an admin may attach.
func (s *UploadService) Attach(ctx context.Context, principal models.Principal, submissionID, originalName, contentType string, size int64, r io.Reader) (*models.SubmissionFile, error) {
	if size > s.maxBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d byte limit", s.maxBytes))
	}
	sub, err := s.loadAuthorized(ctx, principal, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.Status == models.SubmissionGraded {
		return nil, appErrors.Clone(appErrors.ErrConflict, "cannot attach files to a graded submission")
	}

	fileID := uuid.NewString()
	stored := filepath.Join("submissions", sub.ID, fileID+filepath.Ext(originalName))
	written, err := s.store.SaveStream(stored, io.LimitReader(r, s.maxBytes))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	file := models.SubmissionFile{
		ID:           fileID,
		OriginalName: originalName,
		FileName:     filepath.Base(stored),
		Path:         stored,
		Size:         written,
		Type:         contentType,
		UploadedAt:   time.Now().UTC(),
	}
	sub.Files = append(sub.Files, file)
	if err := s.submissions.Update(ctx, sub); err != nil {
		if delErr := s.store.Delete(stored); delErr != nil {
			s.logger.Warn("orphaned upload left on disk", zap.String("path", stored), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record file")
	}
	return &file, nil
}

// Open resolves a stored artifact for streaming back to the caller.
func (s *UploadService) Open(ctx context.Context, principal models.Principal, submissionID, fileID string) (*os.File, *models.SubmissionFile, error) {
	sub, err := s.loadAuthorized(ctx, principal, submissionID)
	if err != nil {
		return nil, nil, err
	}
	for i := range sub.Files {
		if sub.Files[i].ID == fileID {
			handle, err := s.store.Open(sub.Files[i].Path)
			if err != nil {
				return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
			}
			return handle, &sub.Files[i], nil
		}
	}
	return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
}

func (s *UploadService) loadAuthorized(ctx context.Context, principal models.Principal, submissionID string) (*models.ProjectSubmission, error) {
	sub, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if principal.IsAdmin() || principal.Role == models.RoleTeacher || principal.UserID == sub.StudentID {
		return sub, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "not allowed")
}
