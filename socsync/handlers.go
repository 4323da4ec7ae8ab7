package socsync

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/grsnucleo/ocupacional_backend/config"
	"bitbucket.org/grsnucleo/ocupacional_backend/models"
	"bitbucket.org/grsnucleo/ocupacional_backend/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const requestDateParamLayout = "2006-01-02"

type TriggerSyncRequest struct {
	CompanyCode int    `json:"companyCode"`
	EmployerID  *uint  `json:"employerId"`
	RangeStart  string `json:"rangeStart"`
	RangeEnd    string `json:"rangeEnd"`
}

type TriggerTagRefreshRequest struct {
	CompanyCode int `json:"companyCode"`
}

type SyncHistoryResponse struct {
	Items []SyncRunResponse `json:"items"`
}

type SyncRunResponse struct {
	ID                uint    `json:"id"`
	CompanyCode       int     `json:"companyCode"`
	Kind              string  `json:"kind"`
	Status            string  `json:"status"`
	TriggeredBy       string  `json:"triggeredBy"`
	StartedAt         *string `json:"startedAt"`
	FinishedAt        *string `json:"finishedAt"`
	DurationMs        int64   `json:"durationMs"`
	Inserted          int     `json:"inserted"`
	Updated           int     `json:"updated"`
	SkippedNoFacility int     `json:"skippedNoFacility"`
	BadRows           int     `json:"badRows"`
	AffectedTagRows   int64   `json:"affectedTagRows"`
	ErrorCount        int     `json:"errorCount"`
}

type SyncRunDetailResponse struct {
	SyncRunResponse
	Errors []SyncErrorResponse `json:"errors"`
}

type SyncErrorResponse struct {
	ID         uint   `json:"id"`
	EmployerID *uint  `json:"employerId"`
	Stage      string `json:"stage"`
	ErrorCode  string `json:"errorCode"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
}

// TriggerSyncHandler queues a reconcile run for a company, optionally scoped
// to one employer and an explicit date range.
func TriggerSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := requireUser(c); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req TriggerSyncRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if req.CompanyCode == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "companyCode is required"})
			return
		}

		rangeStart, rangeEnd, err := parseRunRange(req.RangeStart, req.RangeEnd)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx := c.Request.Context()
		if _, err := models.GetCompanyPrincipalByCode(ctx, req.CompanyCode); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "company not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		db := config.GetDB().WithContext(ctx)
		run := models.SyncRun{
			CompanyPrincipalCode: req.CompanyCode,
			EmployerID:           req.EmployerID,
			Kind:                 models.SyncRunKindReconcile,
			Status:               models.SyncRunStatusQueued,
			TriggeredBy:          models.SyncTriggeredManual,
			RangeStart:           rangeStart,
			RangeEnd:             rangeEnd,
		}
		if err := db.Create(&run).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		_ = PublishSyncRun(ctx, run.ID, req.CompanyCode)

		c.JSON(http.StatusOK, gin.H{"id": run.ID})
	}
}

// TriggerTagRefreshHandler queues a global tag refresh run.
func TriggerTagRefreshHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := requireUser(c); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req TriggerTagRefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if req.CompanyCode == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "companyCode is required"})
			return
		}

		ctx := c.Request.Context()
		if _, err := models.GetCompanyPrincipalByCode(ctx, req.CompanyCode); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "company not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		db := config.GetDB().WithContext(ctx)
		run := models.SyncRun{
			CompanyPrincipalCode: req.CompanyCode,
			Kind:                 models.SyncRunKindTagRefresh,
			Status:               models.SyncRunStatusQueued,
			TriggeredBy:          models.SyncTriggeredManual,
		}
		if err := db.Create(&run).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		_ = PublishSyncRun(ctx, run.ID, req.CompanyCode)

		c.JSON(http.StatusOK, gin.H{"id": run.ID})
	}
}

func SyncHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := requireUser(c); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		limit := config.SearchLimit
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		db := config.GetDB().WithContext(c.Request.Context())
		query := db.Order("id desc").Limit(limit)
		if v := strings.TrimSpace(c.Query("companyCode")); v != "" {
			code, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid companyCode"})
				return
			}
			query = query.Where("company_principal_code = ?", code)
		}

		var runs []models.SyncRun
		if err := query.Find(&runs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		items := make([]SyncRunResponse, 0, len(runs))
		for _, run := range runs {
			items = append(items, mapRunToResponse(run))
		}
		c.JSON(http.StatusOK, SyncHistoryResponse{Items: items})
	}
}

func SyncRunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := requireUser(c); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())

		var run models.SyncRun
		if err := db.Where("id = ?", id).Take(&run).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		var errs []models.SyncRunError
		if err := db.Where("sync_run_id = ?", run.ID).Order("id desc").Find(&errs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, SyncRunDetailResponse{
			SyncRunResponse: mapRunToResponse(run),
			Errors:          mapErrors(errs),
		})
	}
}

// RetrySyncRunHandler queues a fresh run carrying the parameters of a past
// one, linked through parentRunId.
func RetrySyncRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := requireUser(c); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())

		var run models.SyncRun
		if err := db.Where("id = ?", id).Take(&run).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		newRun := models.SyncRun{
			CompanyPrincipalCode: run.CompanyPrincipalCode,
			EmployerID:           run.EmployerID,
			Kind:                 run.Kind,
			Status:               models.SyncRunStatusQueued,
			TriggeredBy:          models.SyncTriggeredRetry,
			RangeStart:           run.RangeStart,
			RangeEnd:             run.RangeEnd,
			ParentRunID:          &run.ID,
		}
		if err := db.Create(&newRun).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		_ = PublishSyncRun(c.Request.Context(), newRun.ID, newRun.CompanyPrincipalCode)

		c.JSON(http.StatusOK, gin.H{"id": newRun.ID})
	}
}

func requireUser(c *gin.Context) error {
	username, ok := utils.GetUsernameFromContext(c.Request.Context())
	if !ok || strings.TrimSpace(username) == "" {
		return errors.New("unauthorized")
	}
	return nil
}

func parseRunRange(startRaw, endRaw string) (*time.Time, *time.Time, error) {
	startRaw = strings.TrimSpace(startRaw)
	endRaw = strings.TrimSpace(endRaw)
	if startRaw == "" && endRaw == "" {
		return nil, nil, nil
	}
	if startRaw == "" || endRaw == "" {
		return nil, nil, errors.New("rangeStart and rangeEnd must be given together")
	}
	start, err := time.Parse(requestDateParamLayout, startRaw)
	if err != nil {
		return nil, nil, errors.New("rangeStart must be yyyy-mm-dd")
	}
	end, err := time.Parse(requestDateParamLayout, endRaw)
	if err != nil {
		return nil, nil, errors.New("rangeEnd must be yyyy-mm-dd")
	}
	if end.Before(start) {
		return nil, nil, errors.New("rangeEnd is before rangeStart")
	}
	return &start, &end, nil
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func mapRunToResponse(run models.SyncRun) SyncRunResponse {
	return SyncRunResponse{
		ID:                run.ID,
		CompanyCode:       run.CompanyPrincipalCode,
		Kind:              run.Kind,
		Status:            run.Status,
		TriggeredBy:       run.TriggeredBy,
		StartedAt:         formatTime(run.StartedAt),
		FinishedAt:        formatTime(run.FinishedAt),
		DurationMs:        run.DurationMs,
		Inserted:          run.Inserted,
		Updated:           run.Updated,
		SkippedNoFacility: run.SkippedNoFacility,
		BadRows:           run.BadRows,
		AffectedTagRows:   run.AffectedTagRows,
		ErrorCount:        run.ErrorCount,
	}
}

func mapErrors(errorsList []models.SyncRunError) []SyncErrorResponse {
	out := make([]SyncErrorResponse, 0, len(errorsList))
	for _, errItem := range errorsList {
		out = append(out, SyncErrorResponse{
			ID:         errItem.ID,
			EmployerID: errItem.EmployerID,
			Stage:      errItem.Stage,
			ErrorCode:  errItem.ErrorCode,
			Message:    errItem.Message,
			Retryable:  errItem.Retryable,
		})
	}
	return out
}
