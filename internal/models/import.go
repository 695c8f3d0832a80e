package models

import (
	"time"

	"github.com/google/uuid"
)

// ImportStatus represents the status of an import job
type ImportStatus string

const (
	ImportStatusPending    ImportStatus = "PENDING"
	ImportStatusProcessing ImportStatus = "PROCESSING"
	ImportStatusCompleted  ImportStatus = "COMPLETED"
	ImportStatusFailed     ImportStatus = "FAILED"
)

// Terminal reports whether no further status transition is allowed.
func (s ImportStatus) Terminal() bool {
	return s == ImportStatusCompleted || s == ImportStatusFailed
}

// ImportJob is the durable record of one CSV upload. It is created at
// submission time and from then on mutated only by its own pipeline run.
type ImportJob struct {
	ID              uuid.UUID    `json:"id" gorm:"type:uuid;primary_key"`
	FileName        string       `json:"fileName" gorm:"not null"`
	FileSize        int64        `json:"fileSize" gorm:"not null"`
	Status          ImportStatus `json:"status" gorm:"not null;default:'PENDING';index"`
	Progress        int          `json:"progress" gorm:"not null;default:0"`
	ProcessedRows   int64        `json:"processedRows" gorm:"not null;default:0"`
	TotalRows       int64        `json:"totalRows" gorm:"not null;default:0"`
	RowErrorCount   int64        `json:"rowErrorCount" gorm:"not null;default:0"`
	DurationSeconds float64      `json:"durationSeconds" gorm:"not null;default:0"`
	ErrorMessage    *string      `json:"errorMessage,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// TableName returns the table name for the ImportJob model
func (ImportJob) TableName() string {
	return "import_jobs"
}

// ImportJobResponse wraps a single job representation
type ImportJobResponse struct {
	Success bool       `json:"success"`
	Data    *ImportJob `json:"data"`
	Message *string    `json:"message,omitempty"`
}

// ImportJobListResponse wraps a job listing, newest first
type ImportJobListResponse struct {
	Success bool        `json:"success"`
	Data    []ImportJob `json:"data"`
}

// ImportTemplateColumn defines a column in the import template
type ImportTemplateColumn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Type        string `json:"type"` // string, number, boolean
	Example     string `json:"example"`
}

// ImportTemplate defines the structure of an import template
type ImportTemplate struct {
	Entity  string                 `json:"entity"`
	Version string                 `json:"version"`
	Columns []ImportTemplateColumn `json:"columns"`
}

// ProductImportColumns returns the column definitions for product import
func ProductImportColumns() []ImportTemplateColumn {
	return []ImportTemplateColumn{
		{Name: "sku", Description: "Unique product SKU (case-insensitive)", Required: false, Type: "string", Example: "TSH-BLU-001"},
		{Name: "name", Description: "Product name", Required: false, Type: "string", Example: "Blue Cotton T-Shirt"},
		{Name: "description", Description: "Product description", Required: false, Type: "string", Example: "Soft cotton tee"},
		{Name: "price", Description: "Product price, defaults to 0", Required: false, Type: "number", Example: "29.99"},
		{Name: "active", Description: "Whether the product is active, defaults to true", Required: false, Type: "boolean", Example: "true"},
	}
}

// ProductImportTemplate returns the template definition for products
func ProductImportTemplate() ImportTemplate {
	return ImportTemplate{
		Entity:  "products",
		Version: "1.0",
		Columns: ProductImportColumns(),
	}
}
