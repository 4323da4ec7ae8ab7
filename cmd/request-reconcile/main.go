package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"bitbucket.org/grsnucleo/ocupacional_backend/config"
	"bitbucket.org/grsnucleo/ocupacional_backend/models"
	"bitbucket.org/grsnucleo/ocupacional_backend/socsync"
)

// One-shot reconcile job for cron. Creates a sync run and drives it through
// the same pipeline the push worker uses, so history and error rows come out
// identical to a queued run.
func main() {
	companyCode := flag.Int("company", 0, "Company principal code to reconcile (required)")
	employerID := flag.Uint("employer-id", 0, "Optional: reconcile only one employer")
	from := flag.String("from", "", "Optional: extract window start (YYYY-MM-DD). Defaults to 30 days ago.")
	to := flag.String("to", "", "Optional: extract window end (YYYY-MM-DD). Defaults to today.")
	flag.Parse()

	if *companyCode == 0 {
		fmt.Fprintln(os.Stderr, "-company is required")
		os.Exit(1)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	models.MigrateTable()

	if _, err := models.GetCompanyPrincipalByCode(ctx, *companyCode); err != nil {
		fmt.Fprintf(os.Stderr, "company %d: %v\n", *companyCode, err)
		os.Exit(1)
	}

	run := models.SyncRun{
		CompanyPrincipalCode: *companyCode,
		Kind:                 models.SyncRunKindReconcile,
		Status:               models.SyncRunStatusQueued,
		TriggeredBy:          models.SyncTriggeredSchedule,
	}
	if *employerID != 0 {
		id := uint(*employerID)
		run.EmployerID = &id
	}

	rangeStart, rangeEnd, err := parseRange(*from, *to)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	run.RangeStart = rangeStart
	run.RangeEnd = rangeEnd

	if err := db.WithContext(ctx).Create(&run).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to create sync run: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Reconciling company=%d run=%d\n", *companyCode, run.ID)

	if err := socsync.ProcessSyncRun(ctx, socsync.SyncPubSubPayload{
		RunId:       run.ID,
		CompanyCode: *companyCode,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "run %d failed: %v\n", run.ID, err)
		os.Exit(1)
	}

	var finished models.SyncRun
	if err := db.WithContext(ctx).Take(&finished, run.ID).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to reload run %d: %v\n", run.ID, err)
		os.Exit(1)
	}
	fmt.Printf("Run %d finished status=%s inserted=%d updated=%d skipped=%d badRows=%d errors=%d\n",
		finished.ID, finished.Status, finished.Inserted, finished.Updated,
		finished.SkippedNoFacility, finished.BadRows, finished.ErrorCount)

	if finished.Status == models.SyncRunStatusFailed {
		os.Exit(1)
	}
}

func parseRange(from, to string) (*time.Time, *time.Time, error) {
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if from == "" && to == "" {
		return nil, nil, nil
	}
	if from == "" || to == "" {
		return nil, nil, fmt.Errorf("-from and -to must be given together")
	}
	start, err := time.Parse("2006-01-02", from)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid -from %q: %v", from, err)
	}
	end, err := time.Parse("2006-01-02", to)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid -to %q: %v", to, err)
	}
	if end.Before(start) {
		return nil, nil, fmt.Errorf("-to %q is before -from %q", to, from)
	}
	return &start, &end, nil
}
