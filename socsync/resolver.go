package socsync

import (
	"context"
	"time"

	"bitbucket.org/grsnucleo/ocupacional_backend/config"
	"bitbucket.org/grsnucleo/ocupacional_backend/models"
	"gorm.io/gorm"
)

// ExamInfo is the resolver output for one exam code.
type ExamInfo struct {
	ID           uint
	LeadTimeDays int
}

// ReferenceResolver maps vendor-side natural keys onto internal surrogate
// ids. All lookups are batched; the engine never resolves one key at a time.
type ReferenceResolver interface {
	ExamsByCode(ctx context.Context, companyCode int, codes []string) (map[string]ExamInfo, error)
	FacilitiesByCode(ctx context.Context, employerID uint, codes []string) (map[string]uint, error)
	ClinicsByCode(ctx context.Context, companyCode int, codes []int) (map[int]uint, error)
	FinalizingStatusIDs(ctx context.Context) (map[int]bool, error)
}

// GormResolver resolves against the reference tables populated by the
// separate catalog ingestion jobs.
type GormResolver struct {
	db *gorm.DB
}

func NewGormResolver(db *gorm.DB) *GormResolver {
	return &GormResolver{db: db}
}

func (r *GormResolver) ExamsByCode(ctx context.Context, companyCode int, codes []string) (map[string]ExamInfo, error) {
	if len(codes) == 0 {
		return map[string]ExamInfo{}, nil
	}

	var exams []models.Exam
	err := r.db.WithContext(ctx).
		Where("company_principal_code = ? AND code IN ?", companyCode, codes).
		Find(&exams).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]ExamInfo, len(exams))
	for _, exam := range exams {
		out[exam.Code] = ExamInfo{ID: exam.ID, LeadTimeDays: exam.LeadTimeDays}
	}
	return out, nil
}

func (r *GormResolver) FacilitiesByCode(ctx context.Context, employerID uint, codes []string) (map[string]uint, error) {
	if len(codes) == 0 {
		return map[string]uint{}, nil
	}

	var facilities []models.Facility
	err := r.db.WithContext(ctx).
		Where("employer_id = ? AND code IN ?", employerID, codes).
		Find(&facilities).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]uint, len(facilities))
	for _, facility := range facilities {
		out[facility.Code] = facility.ID
	}
	return out, nil
}

func (r *GormResolver) ClinicsByCode(ctx context.Context, companyCode int, codes []int) (map[int]uint, error) {
	if len(codes) == 0 {
		return map[int]uint{}, nil
	}

	var clinics []models.Clinic
	err := r.db.WithContext(ctx).
		Where("company_principal_code = ? AND code IN ?", companyCode, codes).
		Find(&clinics).Error
	if err != nil {
		return nil, err
	}

	out := make(map[int]uint, len(clinics))
	for _, clinic := range clinics {
		out[clinic.Code] = clinic.ID
	}
	return out, nil
}

const finalizingStatusCacheKey = "socsync:finalizing_status_ids"

// FinalizingStatusIDs returns the status ids flagged as process-finalizing.
// The set changes rarely, so it is cached in redis for a few minutes to keep
// it out of every reconcile pass.
func (r *GormResolver) FinalizingStatusIDs(ctx context.Context) (map[int]bool, error) {
	var cached []int
	if ok, err := config.GetRedisObject(finalizingStatusCacheKey, &cached); err == nil && ok {
		return idSet(cached), nil
	}

	var ids []int
	err := r.db.WithContext(ctx).
		Model(&models.Status{}).
		Where("finalizes_process = ?", true).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}

	_ = config.SetRedisObject(finalizingStatusCacheKey, ids, 5*time.Minute)

	return idSet(ids), nil
}

func idSet(ids []int) map[int]bool {
	set := make(map[int]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
