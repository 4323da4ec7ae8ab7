package models

import "time"

// ExamRequest is one employee's exam-order ticket ("ficha"). The vendor may
// return several extract lines for the same ticket (one per exam ordered);
// the reconciliation engine collapses them into a single row keyed by the
// vendor-assigned SequenceID.
type ExamRequest struct {
	ID                   uint `gorm:"primary_key" json:"id"`
	SequenceID           int  `gorm:"uniqueIndex;not null" json:"sequence_id"`
	CompanyPrincipalCode int  `gorm:"index;not null" json:"company_principal_code"`
	EmployerID           uint `gorm:"index;not null" json:"employer_id"`

	// FacilityID is required by the insert path; it stays nullable because
	// manually filed tickets may predate the facility load.
	FacilityID *uint `gorm:"index" json:"facility_id"`

	// ClinicID is the clinic expected to close the ticket, chosen by the
	// shortest-lead-time line of the collapsed group.
	ClinicID *uint `gorm:"index" json:"clinic_id"`

	EmployeeCode  int    `json:"employee_code"`
	EmployeeName  string `gorm:"size:255" json:"employee_name"`
	EmployeeTaxID string `gorm:"size:20" json:"employee_tax_id"`

	RequestDate  *time.Time `gorm:"type:date" json:"request_date"`
	ExamTypeCode int        `json:"exam_type_code"`

	// LeadTimeDays is the max lead time across the collapsed lines.
	LeadTimeDays        *int       `json:"lead_time_days"`
	ExpectedReleaseDate *time.Time `gorm:"type:date" json:"expected_release_date"`

	StatusID   int         `gorm:"not null;default:1;index" json:"status_id"`
	ReleaseTag *ReleaseTag `gorm:"index" json:"release_tag"`

	// Human workflow fields. The reconciliation engine never writes these.
	ReceivedDate   *time.Time `gorm:"type:date" json:"received_date"`
	AttendanceDate *time.Time `gorm:"type:date" json:"attendance_date"`
	Notes          string     `gorm:"type:text" json:"notes"`

	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	CreatedBy        string     `gorm:"size:100" json:"created_by"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	UpdatedBy        string     `gorm:"size:100" json:"updated_by"`
	LastServerUpdate *time.Time `json:"last_server_update"`
}
