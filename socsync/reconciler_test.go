package socsync

import (
	"context"
	"testing"
	"time"

	"bitbucket.org/grsnucleo/ocupacional_backend/calendar"
	"bitbucket.org/grsnucleo/ocupacional_backend/models"
)

type fakeClient struct {
	lines []RawExamLine
	err   error
	calls int
}

func (f *fakeClient) Fetch(ctx context.Context, employerCode int, creds ExtractCredentials, start, end time.Time) ([]RawExamLine, error) {
	f.calls++
	return f.lines, f.err
}

type fakeResolver struct {
	exams      map[string]ExamInfo
	facilities map[string]uint
	clinics    map[int]uint
	finalizing map[int]bool
}

func (f *fakeResolver) ExamsByCode(ctx context.Context, companyCode int, codes []string) (map[string]ExamInfo, error) {
	return f.exams, nil
}

func (f *fakeResolver) FacilitiesByCode(ctx context.Context, employerID uint, codes []string) (map[string]uint, error) {
	return f.facilities, nil
}

func (f *fakeResolver) ClinicsByCode(ctx context.Context, companyCode int, codes []int) (map[int]uint, error) {
	return f.clinics, nil
}

func (f *fakeResolver) FinalizingStatusIDs(ctx context.Context) (map[int]bool, error) {
	if f.finalizing == nil {
		return map[int]bool{models.StatusReceivedID: true}, nil
	}
	return f.finalizing, nil
}

type fakeStore struct {
	known    map[int]KnownRequest
	inserted []models.ExamRequest
	updated  []RequestUpdate
}

func (f *fakeStore) KnownBySequenceIDs(ctx context.Context, employerID uint, sequenceIDs []int) (map[int]KnownRequest, error) {
	if f.known == nil {
		return map[int]KnownRequest{}, nil
	}
	return f.known, nil
}

func (f *fakeStore) BulkInsert(ctx context.Context, rows []models.ExamRequest) error {
	f.inserted = append(f.inserted, rows...)
	return nil
}

func (f *fakeStore) BulkUpdate(ctx context.Context, updates []RequestUpdate) error {
	f.updated = append(f.updated, updates...)
	return nil
}

func (f *fakeStore) UpdateTagWhere(ctx context.Context, cond TagCondition, today time.Time, tag models.ReleaseTag) (int64, error) {
	return 0, nil
}

func testEmployer() models.Employer {
	return models.Employer{ID: 7, CompanyPrincipalCode: 100, Code: 321, Active: true}
}

func testResolver() *fakeResolver {
	return &fakeResolver{
		exams: map[string]ExamInfo{
			"AUDIO": {ID: 1, LeadTimeDays: 5},
			"RAIOX": {ID: 2, LeadTimeDays: 12},
			"ASO":   {ID: 3, LeadTimeDays: 3},
		},
		facilities: map[string]uint{"SEDE": 50},
		clinics:    map[int]uint{201: 91, 202: 92, 203: 93},
	}
}

func extractLine(seq, examCode, clinicCode string) RawExamLine {
	return RawExamLine{
		SequenceID:    seq,
		EmployerCode:  "321",
		EmployeeCode:  "42",
		EmployeeName:  "Maria Silva",
		EmployeeTaxID: "12345678901",
		RequestDate:   "05/06/2024",
		ExamTypeCode:  "1",
		ExamCode:      examCode,
		ClinicCode:    clinicCode,
		FacilityCode:  "SEDE",
	}
}

func newTestReconciler(client *fakeClient, store *fakeStore) *Reconciler {
	r := NewReconciler(client, testResolver(), store, calendar.NewBrazil())
	r.Now = func() time.Time { return day(2024, time.June, 10) }
	return r
}

func runReconcileTest(t *testing.T, client *fakeClient, store *fakeStore) Result {
	t.Helper()
	r := newTestReconciler(client, store)
	res, err := r.Reconcile(context.Background(), testEmployer(), ExtractCredentials{Code: 1, Key: "k"}, day(2024, time.June, 1), day(2024, time.June, 30))
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	return res
}

func TestReconcileCollapsesLinesPerSequenceID(t *testing.T) {
	client := &fakeClient{lines: []RawExamLine{
		extractLine("1000", "AUDIO", "201"),
		extractLine("1000", "RAIOX", "202"),
		extractLine("1000", "ASO", "203"),
	}}
	store := &fakeStore{}

	res := runReconcileTest(t, client, store)

	if res.Inserted != 1 || len(store.inserted) != 1 {
		t.Fatalf("inserted = %d (rows %d), want 1", res.Inserted, len(store.inserted))
	}

	row := store.inserted[0]
	if row.SequenceID != 1000 {
		t.Fatalf("sequence id = %d", row.SequenceID)
	}
	if row.LeadTimeDays == nil || *row.LeadTimeDays != 12 {
		t.Errorf("lead time = %v, want max lead 12", row.LeadTimeDays)
	}
	// The clinic comes from the shortest-lead line (ASO, clinic 203 -> 93).
	if row.ClinicID == nil || *row.ClinicID != 93 {
		t.Errorf("clinic id = %v, want 93", row.ClinicID)
	}
	if row.FacilityID == nil || *row.FacilityID != 50 {
		t.Errorf("facility id = %v, want 50", row.FacilityID)
	}
	if row.StatusID != models.StatusPendingID {
		t.Errorf("status = %d, want pending", row.StatusID)
	}
	if row.CreatedBy != serverActor || row.UpdatedBy != serverActor {
		t.Errorf("actor stamps = %q/%q, want %q", row.CreatedBy, row.UpdatedBy, serverActor)
	}

	wantExpected := calendar.NewBrazil().AddBusinessDays(day(2024, time.June, 5), 12)
	if row.ExpectedReleaseDate == nil || !row.ExpectedReleaseDate.Equal(wantExpected) {
		t.Errorf("expected release = %v, want %v", row.ExpectedReleaseDate, wantExpected)
	}
	if row.ReleaseTag == nil || *row.ReleaseTag != ComputeTag(&wantExpected, day(2024, time.June, 10)) {
		t.Errorf("release tag = %v", row.ReleaseTag)
	}
}

func TestReconcileUpdatesKnownRequest(t *testing.T) {
	client := &fakeClient{lines: []RawExamLine{extractLine("2000", "AUDIO", "201")}}
	storedTag := models.TagOnTrack
	storedDate := day(2024, time.June, 5)
	store := &fakeStore{known: map[int]KnownRequest{
		2000: {ID: 55, SequenceID: 2000, StatusID: models.StatusPendingID, ReleaseTag: &storedTag, RequestDate: &storedDate},
	}}

	res := runReconcileTest(t, client, store)

	if res.Inserted != 0 || res.Updated != 1 {
		t.Fatalf("inserted=%d updated=%d, want 0/1", res.Inserted, res.Updated)
	}
	if len(store.inserted) != 0 {
		t.Fatal("known sequence id must not be re-inserted")
	}

	upd := store.updated[0]
	if upd.ID != 55 {
		t.Fatalf("update targets row %d, want 55", upd.ID)
	}
	if upd.LeadTimeDays == nil || *upd.LeadTimeDays != 5 {
		t.Errorf("lead time = %v, want 5", upd.LeadTimeDays)
	}
	// Request date did not change, so the stored tag survives.
	if upd.ReleaseTag != models.TagOnTrack {
		t.Errorf("tag = %v, want stored on-track", upd.ReleaseTag)
	}
	if upd.UpdatedBy != serverActor {
		t.Errorf("updated by = %q", upd.UpdatedBy)
	}
}

func TestReconcileRecomputesTagWhenRequestDateMoved(t *testing.T) {
	client := &fakeClient{lines: []RawExamLine{extractLine("2000", "AUDIO", "201")}}
	storedTag := models.TagOnTrack
	oldDate := day(2024, time.April, 1)
	store := &fakeStore{known: map[int]KnownRequest{
		2000: {ID: 55, SequenceID: 2000, StatusID: models.StatusPendingID, ReleaseTag: &storedTag, RequestDate: &oldDate},
	}}

	runReconcileTest(t, client, store)

	upd := store.updated[0]
	wantExpected := calendar.NewBrazil().AddBusinessDays(day(2024, time.June, 5), 5)
	want := ComputeTag(&wantExpected, day(2024, time.June, 10))
	if upd.ReleaseTag != want {
		t.Fatalf("tag = %v, want recomputed %v", upd.ReleaseTag, want)
	}
}

func TestReconcileKeepsTagForReceivedRequests(t *testing.T) {
	client := &fakeClient{lines: []RawExamLine{extractLine("2000", "AUDIO", "201")}}
	storedTag := models.TagOk
	oldDate := day(2024, time.April, 1)
	store := &fakeStore{known: map[int]KnownRequest{
		2000: {ID: 55, SequenceID: 2000, StatusID: models.StatusReceivedID, ReleaseTag: &storedTag, RequestDate: &oldDate},
	}}

	runReconcileTest(t, client, store)

	if store.updated[0].ReleaseTag != models.TagOk {
		t.Fatalf("received request changed tag to %v, want kept ok", store.updated[0].ReleaseTag)
	}
}

func TestReconcileSkipsLinesWithoutFacility(t *testing.T) {
	noFacility := extractLine("3000", "AUDIO", "201")
	noFacility.FacilityCode = "UNKNOWN"
	client := &fakeClient{lines: []RawExamLine{
		noFacility,
		extractLine("3001", "AUDIO", "201"),
	}}
	store := &fakeStore{}

	res := runReconcileTest(t, client, store)

	if res.SkippedNoFacility != 1 {
		t.Fatalf("skipped = %d, want 1", res.SkippedNoFacility)
	}
	if res.Inserted != 1 || len(store.inserted) != 1 || store.inserted[0].SequenceID != 3001 {
		t.Fatalf("only sequence 3001 should be inserted, got %+v", store.inserted)
	}
}

func TestReconcileCountsBadRows(t *testing.T) {
	bad := extractLine("4000", "AUDIO", "201")
	bad.SequenceID = "not-a-number"
	client := &fakeClient{lines: []RawExamLine{bad, extractLine("4001", "AUDIO", "201")}}
	store := &fakeStore{}

	res := runReconcileTest(t, client, store)

	if res.BadRows != 1 {
		t.Fatalf("badRows = %d, want 1", res.BadRows)
	}
	if res.Inserted != 1 {
		t.Fatalf("inserted = %d, want 1", res.Inserted)
	}
}

func TestReconcileEmptyExtract(t *testing.T) {
	client := &fakeClient{}
	store := &fakeStore{}

	res := runReconcileTest(t, client, store)

	if res != (Result{}) {
		t.Fatalf("empty extract must yield a zero result, got %+v", res)
	}
	if len(store.inserted) != 0 || len(store.updated) != 0 {
		t.Fatal("empty extract must not touch the store")
	}
}

func TestReconcileBlankRequestDateGetsNoForecast(t *testing.T) {
	line := extractLine("5000", "AUDIO", "201")
	line.RequestDate = ""
	client := &fakeClient{lines: []RawExamLine{line}}
	store := &fakeStore{}

	res := runReconcileTest(t, client, store)

	if res.Inserted != 1 {
		t.Fatalf("inserted = %d, want 1", res.Inserted)
	}
	row := store.inserted[0]
	if row.RequestDate != nil || row.ExpectedReleaseDate != nil {
		t.Fatalf("blank request date must stay nil: date=%v expected=%v", row.RequestDate, row.ExpectedReleaseDate)
	}
	if row.ReleaseTag == nil || *row.ReleaseTag != models.TagNoForecast {
		t.Fatalf("tag = %v, want no-forecast", row.ReleaseTag)
	}
}

// replayStore feeds every inserted row back through KnownBySequenceIDs so a
// second pass sees what the first one wrote.
type replayStore struct {
	fakeStore
	nextID uint
}

func (f *replayStore) BulkInsert(ctx context.Context, rows []models.ExamRequest) error {
	if f.known == nil {
		f.known = map[int]KnownRequest{}
	}
	for _, row := range rows {
		f.nextID++
		f.known[row.SequenceID] = KnownRequest{
			ID:          f.nextID,
			SequenceID:  row.SequenceID,
			StatusID:    row.StatusID,
			ReleaseTag:  row.ReleaseTag,
			RequestDate: row.RequestDate,
		}
	}
	return f.fakeStore.BulkInsert(ctx, rows)
}

func TestReconcileSecondRunIsIdempotent(t *testing.T) {
	client := &fakeClient{lines: []RawExamLine{
		extractLine("6000", "AUDIO", "201"),
		extractLine("6000", "RAIOX", "202"),
		extractLine("6001", "ASO", "203"),
	}}
	store := &replayStore{}
	r := NewReconciler(client, testResolver(), store, calendar.NewBrazil())
	r.Now = func() time.Time { return day(2024, time.June, 10) }

	run := func() Result {
		t.Helper()
		res, err := r.Reconcile(context.Background(), testEmployer(), ExtractCredentials{Code: 1, Key: "k"}, day(2024, time.June, 1), day(2024, time.June, 30))
		if err != nil {
			t.Fatalf("Reconcile: %v", err)
		}
		return res
	}

	first := run()
	if first.Inserted != 2 || first.Updated != 0 {
		t.Fatalf("first pass = %+v, want 2 inserts and no updates", first)
	}

	second := run()
	if second.Inserted != 0 {
		t.Fatalf("second pass inserted %d rows over an unchanged extract", second.Inserted)
	}
	if second.Updated != 2 {
		t.Fatalf("second pass updated = %d, want the full matched set of 2", second.Updated)
	}
	if len(store.inserted) != 2 {
		t.Fatalf("store holds %d inserted rows after two passes, want 2", len(store.inserted))
	}

	// Unchanged request dates keep the tag written on insert. IDs were
	// assigned in insert order, so id n maps to inserted row n-1.
	for _, upd := range store.updated {
		if int(upd.ID) < 1 || int(upd.ID) > len(store.inserted) {
			t.Fatalf("update references unknown id %d", upd.ID)
		}
		wantTag := *store.inserted[upd.ID-1].ReleaseTag
		if upd.ReleaseTag != wantTag {
			t.Fatalf("second pass rewrote tag to %v, want kept %v", upd.ReleaseTag, wantTag)
		}
	}
}
