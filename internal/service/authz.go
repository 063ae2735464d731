package service

import (
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
)

// Access predicates shared by the mutating flows. Admins always pass;
// failures surface as UNAUTHORIZED upstream so callers cannot probe for
// existence.

func canWriteBatch(p models.Principal, batch *models.Batch) bool {
	return p.IsAdmin() || p.UserID == batch.CreatedBy
}

func canWriteAttendance(p models.Principal, batch *models.Batch) bool {
	return canWriteBatch(p, batch)
}

func canWriteStudent(p models.Principal, batch *models.Batch) bool {
	return canWriteBatch(p, batch)
}

func canWriteProject(p models.Principal, project *models.Project, batch *models.Batch) bool {
	if p.IsAdmin() {
		return true
	}
	if p.UserID == project.AssignedBy {
		return true
	}
	return batch != nil && p.UserID == batch.CreatedBy
}

func canGradeSubmission(p models.Principal, project *models.Project, batch *models.Batch) bool {
	return canWriteProject(p, project, batch)
}

func canSubmitProject(p models.Principal, student *models.Student, project *models.Project) bool {
	if p.IsAdmin() || p.Role == models.RoleTeacher {
		return true
	}
	return p.UserID == student.ID && student.BatchID == project.BatchID
}
