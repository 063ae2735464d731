package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/service"
	appErrors "github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/errors"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/response"
)

// ProjectHandler exposes the final-assessment pipeline endpoints.
type ProjectHandler struct {
	service *service.ProjectService
	uploads *service.UploadService
	exports *service.ExportService
}

// NewProjectHandler constructs a project handler.
func NewProjectHandler(svc *service.ProjectService, uploads *service.UploadService, exports *service.ExportService) *ProjectHandler {
	return &ProjectHandler{service: svc, uploads: uploads, exports: exports}
}

// List godoc
// @Summary List projects
// @Tags Projects
// @Produce json
// @Param batch_id query string false "Filter by batch"
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /projects [get]
func (h *ProjectHandler) List(c *gin.Context) {
	var status *models.ProjectStatus
	if raw := c.Query("status"); raw != "" {
		s := models.ProjectStatus(raw)
		status = &s
	}
	projects, err := h.service.List(c.Request.Context(), c.Query("batch_id"), status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, projects, nil)
}

// Get godoc
// @Summary Get project detail
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Router /projects/{id} [get]
func (h *ProjectHandler) Get(c *gin.Context) {
	project, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, project, nil)
}

// Create godoc
// @Summary Assign a project to a finished batch
// @Tags Projects
// @Accept json
// @Produce json
// @Param payload body service.CreateProjectRequest true "Project payload"
// @Success 201 {object} response.Envelope
// @Router /projects [post]
func (h *ProjectHandler) Create(c *gin.Context) {
	var req service.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	project, err := h.service.Create(c.Request.Context(), principalFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, project)
}

// Update godoc
// @Summary Update project
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param payload body service.UpdateProjectRequest true "Project payload"
// @Success 200 {object} response.Envelope
// @Router /projects/{id} [put]
func (h *ProjectHandler) Update(c *gin.Context) {
	var req service.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	project, err := h.service.Update(c.Request.Context(), principalFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, project, nil)
}

// Delete godoc
// @Summary Retire a project
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 204
// @Router /projects/{id} [delete]
func (h *ProjectHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), principalFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Submit godoc
// @Summary Submit work for a project
// @Tags Projects
// @Accept json
// @Produce json
// @Param payload body service.SubmitProjectRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Router /projects/submissions [post]
func (h *ProjectHandler) Submit(c *gin.Context) {
	var req service.SubmitProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	submission, err := h.service.Submit(c.Request.Context(), principalFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// Resubmit godoc
// @Summary Replace a returned submission with a new version
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body service.SubmitProjectRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Router /projects/submissions/{id}/resubmit [post]
func (h *ProjectHandler) Resubmit(c *gin.Context) {
	var req service.SubmitProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	submission, err := h.service.Resubmit(c.Request.Context(), principalFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// Submissions godoc
// @Summary Active submissions for a project
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Router /projects/{id}/submissions [get]
func (h *ProjectHandler) Submissions(c *gin.Context) {
	submissions, err := h.service.Submissions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submissions, nil)
}

// StartReview godoc
// @Summary Move a submission under review
// @Tags Projects
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /projects/submissions/{id}/review [post]
func (h *ProjectHandler) StartReview(c *gin.Context) {
	submission, err := h.service.StartReview(c.Request.Context(), principalFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// Return godoc
// @Summary Return a submission for rework
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /projects/submissions/{id}/return [post]
func (h *ProjectHandler) Return(c *gin.Context) {
	var req struct {
		Feedback *string `json:"feedback,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	submission, err := h.service.Return(c.Request.Context(), principalFromContext(c), c.Param("id"), req.Feedback)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// Grade godoc
// @Summary Grade a submission
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body service.GradeSubmissionRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Router /projects/submissions/{id}/grade [post]
func (h *ProjectHandler) Grade(c *gin.Context) {
	var req service.GradeSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	submission, err := h.service.Grade(c.Request.Context(), principalFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// Complete godoc
// @Summary Close out a project
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param payload body service.CompleteProjectRequest true "Completion payload"
// @Success 200 {object} response.Envelope
// @Router /projects/{id}/complete [post]
func (h *ProjectHandler) Complete(c *gin.Context) {
	var req service.CompleteProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	project, err := h.service.Complete(c.Request.Context(), principalFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, project, nil)
}

// Analytics godoc
// @Summary Derived analytics for a project
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Router /projects/{id}/analytics [get]
func (h *ProjectHandler) Analytics(c *gin.Context) {
	analytics, err := h.service.Analytics(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, analytics, nil)
}

// Report godoc
// @Summary Download the graded results report
// @Tags Projects
// @Produce application/pdf
// @Param id path string true "Project ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /projects/{id}/report [get]
func (h *ProjectHandler) Report(c *gin.Context) {
	format := service.ExportFormat(c.DefaultQuery("format", "pdf"))
	result, err := h.exports.ProjectReport(c.Request.Context(), principalFromContext(c), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.FileName+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

// UploadFile godoc
// @Summary Attach an artifact to a submission
// @Tags Projects
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Submission ID"
// @Param file formData file true "Artifact"
// @Success 201 {object} response.Envelope
// @Router /projects/submissions/{id}/files [post]
func (h *ProjectHandler) UploadFile(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	src, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer src.Close() //nolint:errcheck

	file, err := h.uploads.Attach(c.Request.Context(), principalFromContext(c), c.Param("id"),
		header.Filename, header.Header.Get("Content-Type"), header.Size, src)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, file)
}

// DownloadFile godoc
// @Summary Stream a submission artifact
// @Tags Projects
// @Produce application/octet-stream
// @Param id path string true "Submission ID"
// @Param fileId path string true "File ID"
// @Success 200 {file} binary
// @Router /projects/submissions/{id}/files/{fileId} [get]
func (h *ProjectHandler) DownloadFile(c *gin.Context) {
	handle, meta, err := h.uploads.Open(c.Request.Context(), principalFromContext(c), c.Param("id"), c.Param("fileId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer handle.Close() //nolint:errcheck

	c.Header("Content-Disposition", `attachment; filename="`+meta.OriginalName+`"`)
	c.Header("Content-Type", meta.Type)
	if _, err := io.Copy(c.Writer, handle); err != nil {
		// headers are already out; nothing sensible left to send
		_ = c.Error(err)
	}
}
