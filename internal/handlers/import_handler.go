package handlers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"product-importer/internal/config"
	"product-importer/internal/importer"
	"product-importer/internal/models"
	"product-importer/internal/repository"
)

type ImportHandler struct {
	repo       *repository.ImportsRepository
	dispatcher *importer.Dispatcher
	cfg        *config.Config
	logger     *logrus.Entry
}

func NewImportHandler(repo *repository.ImportsRepository, dispatcher *importer.Dispatcher, cfg *config.Config, logger *logrus.Logger) *ImportHandler {
	return &ImportHandler{
		repo:       repo,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger.WithField("component", "uploads"),
	}
}

// UploadFile accepts a CSV file and starts an import job
// @Summary Upload CSV for import
// @Description Upload a CSV file of products. Returns the created job; processing runs in the background.
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file"
// @Success 201 {object} models.ImportJobResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 413 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /uploads [post]
func (h *ImportHandler) UploadFile(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "FILE_REQUIRED",
				Message: "No file provided",
				Field:   "file",
			},
		})
		return
	}
	defer file.Close()

	// All validation happens before a job row exists: a rejected upload
	// leaves no trace.
	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_FORMAT",
				Message: "Only .csv files are supported",
				Field:   "file",
			},
		})
		return
	}

	if header.Size > h.cfg.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "FILE_TOO_LARGE",
				Message: fmt.Sprintf("File exceeds the %d MiB limit", h.cfg.MaxUploadBytes/(1024*1024)),
				Field:   "file",
			},
		})
		return
	}

	job, err := h.repo.CreateJob(header.Filename, header.Size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "CREATE_FAILED",
				Message: "Failed to create import job",
			},
		})
		return
	}

	if err := os.MkdirAll(h.cfg.UploadDir, 0o755); err != nil {
		h.failJob(c, job.ID, fmt.Sprintf("failed to prepare upload directory: %v", err))
		return
	}

	storedPath := filepath.Join(h.cfg.UploadDir, job.ID.String()+".csv")
	if err := c.SaveUploadedFile(header, storedPath); err != nil {
		h.failJob(c, job.ID, fmt.Sprintf("failed to store uploaded file: %v", err))
		return
	}

	h.logger.WithFields(logrus.Fields{
		"jobId":    job.ID,
		"fileName": header.Filename,
		"fileSize": header.Size,
	}).Info("Upload accepted")

	// A queued job answers immediately; the synchronous fallback finishes
	// (or fails) before we respond. A failed fallback is a server error,
	// not a created job.
	if err := h.dispatcher.Dispatch(job.ID, storedPath); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "DISPATCH_FAILED",
				Message: "Import could not be processed",
			},
		})
		return
	}

	// The job may already have progressed (or finished, for small files
	// on the synchronous path) by the time we respond.
	if current, err := h.repo.GetJobByID(job.ID); err == nil {
		job = current
	}

	c.JSON(http.StatusCreated, models.ImportJobResponse{
		Success: true,
		Data:    job,
	})
}

// GetUploads lists import jobs, newest first
// @Summary List import jobs
// @Tags Uploads
// @Produce json
// @Success 200 {object} models.ImportJobListResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /uploads [get]
func (h *ImportHandler) GetUploads(c *gin.Context) {
	jobs, err := h.repo.GetJobs()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "FETCH_FAILED",
				Message: "Failed to retrieve import jobs",
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.ImportJobListResponse{
		Success: true,
		Data:    jobs,
	})
}

// GetUpload retrieves a single import job for progress polling
// @Summary Get import job
// @Tags Uploads
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} models.ImportJobResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /uploads/{id} [get]
func (h *ImportHandler) GetUpload(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: "Invalid job ID",
				Field:   "id",
			},
		})
		return
	}

	job, err := h.repo.GetJobByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "NOT_FOUND",
					Message: "Import job not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "FETCH_FAILED",
				Message: "Failed to retrieve import job",
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.ImportJobResponse{
		Success: true,
		Data:    job,
	})
}

// GetImportTemplate returns the import template definition or file
// @Summary Get import template
// @Description Get the product import template as JSON, CSV or XLSX
// @Tags Uploads
// @Produce json
// @Param format query string false "Template format: json, csv or xlsx" default(json)
// @Success 200 {object} map[string]interface{}
// @Router /uploads/template [get]
func (h *ImportHandler) GetImportTemplate(c *gin.Context) {
	format := c.DefaultQuery("format", "json")

	template := models.ProductImportTemplate()

	switch format {
	case "csv":
		h.generateCSVTemplate(c, template)
	case "xlsx":
		h.generateXLSXTemplate(c, template)
	default:
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"template": template,
		})
	}
}

// generateCSVTemplate generates and downloads a CSV template (headers only)
func (h *ImportHandler) generateCSVTemplate(c *gin.Context, template models.ImportTemplate) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=products_import_template.csv")

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	headers := make([]string, len(template.Columns))
	for i, col := range template.Columns {
		headers[i] = col.Name
	}
	writer.Write(headers)
}

// generateXLSXTemplate generates and downloads an Excel template
func (h *ImportHandler) generateXLSXTemplate(c *gin.Context, template models.ImportTemplate) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Products"
	f.SetSheetName("Sheet1", sheetName)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, col := range template.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, col.Name)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)

		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, colName, colName, 20)
	}

	f.NewSheet("Instructions")
	f.SetCellValue("Instructions", "A1", "Product Import Instructions")
	f.SetCellValue("Instructions", "A3", "Rows are matched by SKU: existing SKUs are updated, new SKUs are created.")
	f.SetCellValue("Instructions", "A4", "SKUs are case-insensitive. Missing price defaults to 0, missing active defaults to true.")

	f.SetCellValue("Instructions", "A6", "Column Definitions:")
	f.SetCellValue("Instructions", "A7", "Column")
	f.SetCellValue("Instructions", "B7", "Description")
	f.SetCellValue("Instructions", "C7", "Required")
	f.SetCellValue("Instructions", "D7", "Type")
	f.SetCellValue("Instructions", "E7", "Example")

	for i, col := range template.Columns {
		row := i + 8
		f.SetCellValue("Instructions", fmt.Sprintf("A%d", row), col.Name)
		f.SetCellValue("Instructions", fmt.Sprintf("B%d", row), col.Description)
		required := "Optional"
		if col.Required {
			required = "Required"
		}
		f.SetCellValue("Instructions", fmt.Sprintf("C%d", row), required)
		f.SetCellValue("Instructions", fmt.Sprintf("D%d", row), col.Type)
		f.SetCellValue("Instructions", fmt.Sprintf("E%d", row), col.Example)
	}

	f.SetColWidth("Instructions", "A", "A", 25)
	f.SetColWidth("Instructions", "B", "B", 60)
	f.SetColWidth("Instructions", "C", "C", 15)
	f.SetColWidth("Instructions", "D", "D", 15)
	f.SetColWidth("Instructions", "E", "E", 40)

	sheetIdx, _ := f.GetSheetIndex(sheetName)
	f.SetActiveSheet(sheetIdx)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=products_import_template.xlsx")

	f.Write(c.Writer)
}

// failJob marks a just-created job FAILED when the upload cannot be
// persisted, then reports the error to the caller.
func (h *ImportHandler) failJob(c *gin.Context, jobID uuid.UUID, message string) {
	_, err := h.repo.Mutate(jobID, func(job *models.ImportJob) error {
		job.Status = models.ImportStatusFailed
		job.ErrorMessage = &message
		return nil
	})
	if err != nil {
		h.logger.WithError(err).WithField("jobId", jobID).Error("Failed to mark job as failed")
	}

	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    "UPLOAD_FAILED",
			Message: "Failed to store uploaded file",
		},
	})
}
