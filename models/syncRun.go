package models

import "time"

// SyncRun is one execution of a reconcile or tag-refresh job, durable so
// operators can inspect history and retry failures.
type SyncRun struct {
	ID                   uint       `gorm:"primary_key" json:"id"`
	CompanyPrincipalCode int        `gorm:"index;not null" json:"company_principal_code"`
	EmployerID           *uint      `gorm:"index" json:"employer_id"`
	Kind                 string     `gorm:"size:20;not null" json:"kind"`
	Status               string     `gorm:"size:20;not null" json:"status"`
	TriggeredBy          string     `gorm:"size:20" json:"triggered_by"`
	RangeStart           *time.Time `gorm:"type:date" json:"range_start"`
	RangeEnd             *time.Time `gorm:"type:date" json:"range_end"`

	Inserted          int `json:"inserted"`
	Updated           int `json:"updated"`
	SkippedNoFacility int `json:"skipped_no_facility"`
	BadRows           int `json:"bad_rows"`

	// AffectedTagRows sums per-statement affected counts of the tag sweep and
	// can exceed the table's row count.
	AffectedTagRows int64 `json:"affected_tag_rows"`

	ErrorCount  int        `json:"error_count"`
	ParentRunID *uint      `gorm:"index" json:"parent_run_id"`
	StatsJSON   []byte     `gorm:"type:json" json:"stats"`
	StartedAt   *time.Time `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at"`
	DurationMs  int64      `json:"duration_ms"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type SyncRunError struct {
	ID          uint      `gorm:"primary_key" json:"id"`
	SyncRunID   uint      `gorm:"index;not null" json:"sync_run_id"`
	EmployerID  *uint     `gorm:"index" json:"employer_id"`
	Stage       string    `gorm:"size:50" json:"stage"`
	ErrorCode   string    `gorm:"size:64" json:"error_code"`
	Message     string    `gorm:"type:text" json:"message"`
	PayloadJSON []byte    `gorm:"type:json" json:"payload"`
	Retryable   bool      `gorm:"default:false" json:"retryable"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
