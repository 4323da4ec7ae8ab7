package socsync

import (
	"context"
	"time"

	"bitbucket.org/grsnucleo/ocupacional_backend/models"
	"gorm.io/gorm"
)

// KnownRequest is the snapshot of an already stored request the update path
// needs: surrogate id, current status, current tag and current request date.
type KnownRequest struct {
	ID          uint
	SequenceID  int
	StatusID    int
	ReleaseTag  *models.ReleaseTag
	RequestDate *time.Time
}

// RequestUpdate carries the allow-listed fields the reconciliation update
// path may touch. Everything else on the row belongs to human workflow.
type RequestUpdate struct {
	ID                  uint
	LeadTimeDays        *int
	ExpectedReleaseDate *time.Time
	ClinicID            *uint
	ReleaseTag          models.ReleaseTag
	UpdatedBy           string
}

// TagCondition selects one branch of the bulk tag sweep.
type TagCondition int

const (
	TagCondNoForecastDate TagCondition = iota
	TagCondPastDate
	TagCondFutureDate
	TagCondGraceWindow
	TagCondFinalizingStatus
)

// RequestStore is the persisted exam-request table. Lookups and writes are
// set-based; per-row round-trips are not part of this contract.
type RequestStore interface {
	KnownBySequenceIDs(ctx context.Context, employerID uint, sequenceIDs []int) (map[int]KnownRequest, error)
	BulkInsert(ctx context.Context, rows []models.ExamRequest) error
	BulkUpdate(ctx context.Context, updates []RequestUpdate) error
	UpdateTagWhere(ctx context.Context, cond TagCondition, today time.Time, tag models.ReleaseTag) (int64, error)
}

type GormRequestStore struct {
	db *gorm.DB
}

func NewGormRequestStore(db *gorm.DB) *GormRequestStore {
	return &GormRequestStore{db: db}
}

func (s *GormRequestStore) KnownBySequenceIDs(ctx context.Context, employerID uint, sequenceIDs []int) (map[int]KnownRequest, error) {
	if len(sequenceIDs) == 0 {
		return map[int]KnownRequest{}, nil
	}

	var rows []models.ExamRequest
	err := s.db.WithContext(ctx).
		Select("id", "sequence_id", "status_id", "release_tag", "request_date").
		Where("employer_id = ? AND sequence_id IN ?", employerID, sequenceIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	known := make(map[int]KnownRequest, len(rows))
	for _, row := range rows {
		known[row.SequenceID] = KnownRequest{
			ID:          row.ID,
			SequenceID:  row.SequenceID,
			StatusID:    row.StatusID,
			ReleaseTag:  row.ReleaseTag,
			RequestDate: row.RequestDate,
		}
	}
	return known, nil
}

// BulkInsert writes the whole batch in one transaction so a failed insert
// never reports partial success.
func (s *GormRequestStore) BulkInsert(ctx context.Context, rows []models.ExamRequest) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, 500).Error
	})
}

// BulkUpdate applies field-level updates keyed by surrogate id. Only the
// allow-listed columns are touched; a re-run can never clobber status,
// received date or notes.
func (s *GormRequestStore) BulkUpdate(ctx context.Context, updates []RequestUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	now := time.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			err := tx.Model(&models.ExamRequest{}).
				Where("id = ?", u.ID).
				Updates(map[string]interface{}{
					"lead_time_days":        u.LeadTimeDays,
					"expected_release_date": u.ExpectedReleaseDate,
					"clinic_id":             u.ClinicID,
					"release_tag":           u.ReleaseTag,
					"updated_at":            now,
					"updated_by":            u.UpdatedBy,
					"last_server_update":    now,
				}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateTagWhere runs one conditional bulk update of the tag sweep and
// returns the affected-row count for that statement alone.
func (s *GormRequestStore) UpdateTagWhere(ctx context.Context, cond TagCondition, today time.Time, tag models.ReleaseTag) (int64, error) {
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	query := s.db.WithContext(ctx).Model(&models.ExamRequest{})
	switch cond {
	case TagCondNoForecastDate:
		query = query.Where("expected_release_date IS NULL")
	case TagCondPastDate:
		query = query.Where("expected_release_date < ?", today)
	case TagCondFutureDate:
		query = query.Where("expected_release_date > ?", today)
	case TagCondGraceWindow:
		query = query.Where("expected_release_date BETWEEN ? AND ?", today, today.AddDate(0, 0, 2))
	case TagCondFinalizingStatus:
		query = query.Where(
			"status_id IN (?)",
			s.db.Model(&models.Status{}).Select("id").Where("finalizes_process = ?", true),
		)
	}

	result := query.Update("release_tag", tag)
	return result.RowsAffected, result.Error
}
