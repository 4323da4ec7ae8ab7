package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/grsnucleo/ocupacional_backend/config"
	"bitbucket.org/grsnucleo/ocupacional_backend/utils"
	"gorm.io/gorm"
)

// CompanyPrincipal is the top-level client organization. Code is the
// vendor-assigned id and doubles as the primary key. ExtractKeysJSON holds
// the per-tenant Exporta Dados credentials (code + key per extract type).
type CompanyPrincipal struct {
	Code            int       `gorm:"primary_key;autoIncrement:false" json:"code"`
	Name            string    `gorm:"size:255;not null" json:"name"`
	ExtractKeysJSON []byte    `gorm:"type:json" json:"extract_keys"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Employer ("empresa") belongs to a company principal; Code is the vendor id
// used when requesting extracts.
type Employer struct {
	ID                   uint      `gorm:"primary_key" json:"id"`
	CompanyPrincipalCode int       `gorm:"index;not null" json:"company_principal_code"`
	Code                 int       `gorm:"index;not null" json:"code"`
	Name                 string    `gorm:"size:255" json:"name"`
	Active               bool      `gorm:"default:true" json:"active"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Facility ("unidade") is a physical site of an employer. Vendor codes are
// free-form strings, not numeric.
type Facility struct {
	ID         uint      `gorm:"primary_key" json:"id"`
	EmployerID uint      `gorm:"index;not null" json:"employer_id"`
	Code       string    `gorm:"size:50;index;not null" json:"code"`
	Name       string    `gorm:"size:255" json:"name"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Clinic ("prestador") is the external medical provider performing exams.
type Clinic struct {
	ID                   uint      `gorm:"primary_key" json:"id"`
	CompanyPrincipalCode int       `gorm:"index;not null" json:"company_principal_code"`
	Code                 int       `gorm:"index;not null" json:"code"`
	Name                 string    `gorm:"size:255" json:"name"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Exam carries the vendor-declared lead time in business days.
type Exam struct {
	ID                   uint      `gorm:"primary_key" json:"id"`
	CompanyPrincipalCode int       `gorm:"index;not null" json:"company_principal_code"`
	Code                 string    `gorm:"size:50;index;not null" json:"code"`
	Name                 string    `gorm:"size:255" json:"name"`
	LeadTimeDays         int       `gorm:"default:0" json:"lead_time_days"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type ExamType struct {
	Code int    `gorm:"primary_key;autoIncrement:false" json:"code"`
	Name string `gorm:"size:100" json:"name"`
}

// Status is a workflow state for exam requests. FinalizesProcess marks
// terminal states that force the release tag to Ok.
type Status struct {
	ID               int    `gorm:"primary_key;autoIncrement:false" json:"id"`
	Name             string `gorm:"size:100;not null" json:"name"`
	FinalizesProcess bool   `gorm:"default:false" json:"finalizes_process"`
}

func GetCompanyPrincipalByCode(ctx context.Context, code int) (*CompanyPrincipal, error) {
	var company CompanyPrincipal
	err := config.GetDB().WithContext(ctx).
		Where("code = ?", code).
		Take(&company).Error
	if err != nil {
		return nil, lookupError(err)
	}
	return &company, nil
}

func GetEmployerByID(ctx context.Context, id uint) (*Employer, error) {
	var employer Employer
	err := config.GetDB().WithContext(ctx).
		Where("id = ?", id).
		Take(&employer).Error
	if err != nil {
		return nil, lookupError(err)
	}
	return &employer, nil
}

// lookupError translates a gorm miss into the shared not-found error.
func lookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorRecordNotFound
	}
	return err
}

// GetActiveEmployers lists the employers a reconcile run iterates for one
// company principal.
func GetActiveEmployers(ctx context.Context, companyCode int) ([]Employer, error) {
	var employers []Employer
	err := config.GetDB().WithContext(ctx).
		Where("company_principal_code = ? AND active = ?", companyCode, true).
		Order("id").
		Find(&employers).Error
	return employers, err
}
