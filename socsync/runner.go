package socsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/grsnucleo/ocupacional_backend/calendar"
	"bitbucket.org/grsnucleo/ocupacional_backend/config"
	"bitbucket.org/grsnucleo/ocupacional_backend/models"
	"bitbucket.org/grsnucleo/ocupacional_backend/utils"
	"github.com/bsm/redislock"
	"gorm.io/gorm"
)

const moduleName = "socsync"

const (
	maxFetchAttempts = 3
	retryBaseDelay   = 2 * time.Second
	companyLockTTL   = 5 * time.Minute
	defaultRangeDays = 30
)

// SyncPubSubPayload is the message published for a queued sync run and
// consumed by the push endpoint.
type SyncPubSubPayload struct {
	RunId       uint `json:"run_id"`
	CompanyCode int  `json:"company_code"`
}

// ProcessSyncRun drives one queued sync run to a terminal state. Runs already
// finished are acknowledged without work so redelivered messages are no-ops.
// A per-company lock keeps two runs for the same company from interleaving
// their writes.
func ProcessSyncRun(ctx context.Context, payload SyncPubSubPayload) error {
	if payload.RunId == 0 || payload.CompanyCode == 0 {
		return errors.New("invalid payload")
	}

	logger := config.GetLogger()
	ctx = utils.SetSyncRunIdInContext(ctx, payload.RunId)
	db := config.GetDB().WithContext(ctx)

	var run models.SyncRun
	if err := db.Where("id = ? AND company_principal_code = ?", payload.RunId, payload.CompanyCode).Take(&run).Error; err != nil {
		return err
	}

	if run.Status == models.SyncRunStatusSuccess || run.Status == models.SyncRunStatusFailed || run.Status == models.SyncRunStatusPartial {
		return nil
	}

	company, err := models.GetCompanyPrincipalByCode(ctx, run.CompanyPrincipalCode)
	if err != nil {
		return err
	}

	release, err := obtainCompanyLock(ctx, company.Code)
	if err != nil {
		config.LogError(logger, moduleName, "ProcessSyncRun", "could not obtain company lock", company.Code, err)
		return err
	}
	defer release()

	now := time.Now()
	startedAt := run.StartedAt
	if startedAt == nil {
		startedAt = &now
	}
	if err := db.Model(&run).Updates(map[string]interface{}{
		"status":     models.SyncRunStatusRunning,
		"started_at": startedAt,
	}).Error; err != nil {
		return err
	}

	var (
		result     Result
		affected   int64
		errorCount int
		processed  int
	)

	switch run.Kind {
	case models.SyncRunKindTagRefresh:
		refresher := NewRefresher(NewGormRequestStore(db))
		affected, err = refresher.RefreshAllTags(ctx)
		if err != nil {
			errorCount++
			_ = createSyncRunError(ctx, db, nil, "tag_refresh", "refresh_failed", err.Error(), nil, true)
		}
		processed = int(affected)
	case models.SyncRunKindReconcile:
		result, errorCount = runReconcile(ctx, db, &run, company)
		processed = result.Inserted + result.Updated
	default:
		errorCount++
		_ = createSyncRunError(ctx, db, nil, "dispatch", "unknown_kind", fmt.Sprintf("unknown sync run kind %q", run.Kind), nil, false)
	}

	finishedAt := time.Now()
	durationMs := finishedAt.Sub(*startedAt).Milliseconds()
	status := models.SyncRunStatusSuccess
	if errorCount > 0 && processed == 0 {
		status = models.SyncRunStatusFailed
	} else if errorCount > 0 {
		status = models.SyncRunStatusPartial
	}

	statsJSON, _ := json.Marshal(result)
	if err := db.Model(&run).Updates(map[string]interface{}{
		"status":              status,
		"finished_at":         finishedAt,
		"duration_ms":         durationMs,
		"inserted":            result.Inserted,
		"updated":             result.Updated,
		"skipped_no_facility": result.SkippedNoFacility,
		"bad_rows":            result.BadRows,
		"affected_tag_rows":   affected,
		"error_count":         errorCount,
		"stats_json":          statsJSON,
	}).Error; err != nil {
		return err
	}

	config.LogInfo(logger, moduleName, "ProcessSyncRun", "sync run finished", map[string]interface{}{
		"runId":   run.ID,
		"kind":    run.Kind,
		"status":  status,
		"company": company.Code,
	})
	return nil
}

// runReconcile reconciles every target employer of the run, isolating
// per-employer failures so one broken extract does not sink the batch.
func runReconcile(ctx context.Context, db *gorm.DB, run *models.SyncRun, company *models.CompanyPrincipal) (Result, int) {
	var total Result
	errorCount := 0

	creds, err := DecodeExamRequestCredentials(company.ExtractKeysJSON)
	if err != nil {
		errorCount++
		_ = createSyncRunError(ctx, db, nil, "credentials", "bad_extract_keys", err.Error(), nil, false)
		return total, errorCount
	}

	employers, err := targetEmployers(ctx, run, company)
	if err != nil {
		errorCount++
		_ = createSyncRunError(ctx, db, run.EmployerID, "employers", "load_failed", err.Error(), nil, true)
		return total, errorCount
	}

	start, end := runDateRange(run, time.Now())
	reconciler := NewReconciler(NewSocClient(), NewGormResolver(db), NewGormRequestStore(db), calendar.NewBrazil())

	for _, employer := range employers {
		res, err := reconcileWithRetry(ctx, reconciler, employer, creds, start, end)
		if err != nil {
			errorCount++
			employerID := employer.ID
			_ = createSyncRunError(ctx, db, &employerID, "reconcile", errorCode(err), err.Error(), nil, retryableError(err))
			continue
		}
		total.Inserted += res.Inserted
		total.Updated += res.Updated
		total.SkippedNoFacility += res.SkippedNoFacility
		total.BadRows += res.BadRows
	}
	return total, errorCount
}

func targetEmployers(ctx context.Context, run *models.SyncRun, company *models.CompanyPrincipal) ([]models.Employer, error) {
	if run.EmployerID != nil {
		employer, err := models.GetEmployerByID(ctx, *run.EmployerID)
		if err != nil {
			return nil, err
		}
		return []models.Employer{*employer}, nil
	}
	return models.GetActiveEmployers(ctx, company.Code)
}

func runDateRange(run *models.SyncRun, now time.Time) (time.Time, time.Time) {
	if run.RangeStart != nil && run.RangeEnd != nil {
		return *run.RangeStart, *run.RangeEnd
	}
	end := now
	return end.AddDate(0, 0, -defaultRangeDays), end
}

// reconcileWithRetry retries transient vendor failures with a growing delay.
// Vendor-reported errors are not retried, the request would fail the same
// way again.
func reconcileWithRetry(ctx context.Context, reconciler *Reconciler, employer models.Employer, creds ExtractCredentials, start, end time.Time) (Result, error) {
	var (
		res Result
		err error
	)
	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		res, err = reconciler.Reconcile(ctx, employer, creds, start, end)
		if err == nil || !retryableError(err) {
			return res, err
		}
		if attempt == maxFetchAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-time.After(retryBaseDelay * time.Duration(attempt)):
		}
	}
	return res, err
}

func retryableError(err error) bool {
	var transport *TransportError
	var parse *ParseError
	return errors.As(err, &transport) || errors.As(err, &parse)
}

func errorCode(err error) string {
	var transport *TransportError
	var parse *ParseError
	var vendor *VendorError
	switch {
	case errors.As(err, &transport):
		return "transport_failed"
	case errors.As(err, &parse):
		return "parse_failed"
	case errors.As(err, &vendor):
		return "vendor_rejected"
	default:
		return "reconcile_failed"
	}
}

func createSyncRunError(ctx context.Context, db *gorm.DB, employerID *uint, stage string, code string, message string, payload []byte, retryable bool) error {
	runID, ok := utils.GetSyncRunIdFromContext(ctx)
	if !ok {
		return errors.New("sync run id missing from context")
	}
	errRec := models.SyncRunError{
		SyncRunID:   runID,
		EmployerID:  employerID,
		Stage:       stage,
		ErrorCode:   code,
		Message:     message,
		PayloadJSON: payload,
		Retryable:   retryable,
	}
	return db.WithContext(ctx).Create(&errRec).Error
}

func obtainCompanyLock(ctx context.Context, companyCode int) (func(), error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return nil, errors.New("service not ready (redis lock not initialized)")
	}
	lockKey := fmt.Sprintf("soc-sync:company:%d", companyCode)
	lock, err := locker.Obtain(ctx, lockKey, companyLockTTL, nil)
	if err == redislock.ErrNotObtained {
		return nil, errors.New("another sync run holds the company lock")
	} else if err != nil {
		return nil, err
	}
	return func() { _ = lock.Release(ctx) }, nil
}
