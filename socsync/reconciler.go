package socsync

import (
	"context"
	"sort"
	"time"

	"bitbucket.org/grsnucleo/ocupacional_backend/calendar"
	"bitbucket.org/grsnucleo/ocupacional_backend/models"
)

// serverActor stamps rows written by the sync engine so they can be told
// apart from rows touched by a back-office user.
const serverActor = "server"

// Result is the outcome of one employer reconcile pass.
type Result struct {
	Inserted          int `json:"inserted"`
	Updated           int `json:"updated"`
	SkippedNoFacility int `json:"skippedNoFacility"`
	BadRows           int `json:"badRows"`
}

// Reconciler pulls the pedidoExame extract for one employer and converges the
// local exam request table onto it: unseen sequence ids are inserted, known
// ones have their vendor-owned columns refreshed. Human-owned columns are
// never written on update.
type Reconciler struct {
	Client   ExtractClient
	Resolver ReferenceResolver
	Store    RequestStore
	Calendar calendar.BusinessCalendar
	Now      func() time.Time
}

func NewReconciler(client ExtractClient, resolver ReferenceResolver, store RequestStore, cal calendar.BusinessCalendar) *Reconciler {
	return &Reconciler{
		Client:   client,
		Resolver: resolver,
		Store:    store,
		Calendar: cal,
		Now:      time.Now,
	}
}

// collapsedRequest is one ticket after its extract lines are merged. The
// snapshot fields come from the line with the longest exam lead time, while
// the clinic comes from the line with the shortest one, so the deadline is
// the pessimistic one and the clinic is the first one the employee visits.
type collapsedRequest struct {
	line         ExtractLine
	leadTimeDays int
	facilityID   *uint
	clinicID     *uint
}

// Reconcile runs one extract pass for the employer over [start, end].
func (r *Reconciler) Reconcile(ctx context.Context, employer models.Employer, creds ExtractCredentials, start, end time.Time) (Result, error) {
	var res Result

	raw, err := r.Client.Fetch(ctx, employer.Code, creds, start, end)
	if err != nil {
		return res, err
	}
	if len(raw) == 0 {
		return res, nil
	}

	lines, badRows := NormalizeLines(raw)
	res.BadRows = badRows
	if len(lines) == 0 {
		return res, nil
	}

	exams, facilities, clinics, err := r.resolveReferences(ctx, employer, lines)
	if err != nil {
		return res, err
	}

	collapsed, skipped := collapseLines(lines, exams, facilities, clinics)
	res.SkippedNoFacility = skipped
	if len(collapsed) == 0 {
		return res, nil
	}

	sequenceIDs := make([]int, 0, len(collapsed))
	for _, c := range collapsed {
		sequenceIDs = append(sequenceIDs, c.line.SequenceID)
	}
	known, err := r.Store.KnownBySequenceIDs(ctx, employer.ID, sequenceIDs)
	if err != nil {
		return res, err
	}

	finalizing, err := r.Resolver.FinalizingStatusIDs(ctx)
	if err != nil {
		return res, err
	}

	today := r.Now()
	var inserts []models.ExamRequest
	var updates []RequestUpdate
	for _, c := range collapsed {
		expected := r.expectedRelease(c.line.RequestDate, c.leadTimeDays)
		prior, exists := known[c.line.SequenceID]
		if !exists {
			inserts = append(inserts, r.buildInsert(employer, c, expected, today))
			continue
		}
		updates = append(updates, buildUpdate(prior, c, expected, finalizing, today))
	}

	if len(inserts) > 0 {
		if err := r.Store.BulkInsert(ctx, inserts); err != nil {
			return res, err
		}
		res.Inserted = len(inserts)
	}
	if len(updates) > 0 {
		if err := r.Store.BulkUpdate(ctx, updates); err != nil {
			return res, err
		}
		res.Updated = len(updates)
	}
	return res, nil
}

func (r *Reconciler) resolveReferences(ctx context.Context, employer models.Employer, lines []ExtractLine) (map[string]ExamInfo, map[string]uint, map[int]uint, error) {
	examCodes := make(map[string]bool)
	facilityCodes := make(map[string]bool)
	clinicCodes := make(map[int]bool)
	for _, l := range lines {
		if l.ExamCode != "" {
			examCodes[l.ExamCode] = true
		}
		if l.FacilityCode != "" {
			facilityCodes[l.FacilityCode] = true
		}
		if l.ClinicCode != nil {
			clinicCodes[*l.ClinicCode] = true
		}
	}

	exams, err := r.Resolver.ExamsByCode(ctx, employer.CompanyPrincipalCode, stringKeys(examCodes))
	if err != nil {
		return nil, nil, nil, err
	}
	facilities, err := r.Resolver.FacilitiesByCode(ctx, employer.ID, stringKeys(facilityCodes))
	if err != nil {
		return nil, nil, nil, err
	}
	clinics, err := r.Resolver.ClinicsByCode(ctx, employer.CompanyPrincipalCode, intKeys(clinicCodes))
	if err != nil {
		return nil, nil, nil, err
	}
	return exams, facilities, clinics, nil
}

// collapseLines merges the per-exam extract lines into one request per
// sequence id. Lines whose facility cannot be resolved are dropped first, and
// a sequence id losing every line that way is counted as skipped.
func collapseLines(lines []ExtractLine, exams map[string]ExamInfo, facilities map[string]uint, clinics map[int]uint) ([]collapsedRequest, int) {
	grouped := make(map[int][]ExtractLine)
	dropped := make(map[int]bool)
	order := make([]int, 0, len(lines))
	for _, l := range lines {
		if _, ok := facilities[l.FacilityCode]; !ok {
			dropped[l.SequenceID] = true
			continue
		}
		if _, seen := grouped[l.SequenceID]; !seen {
			order = append(order, l.SequenceID)
		}
		grouped[l.SequenceID] = append(grouped[l.SequenceID], l)
	}

	skipped := 0
	for seq := range dropped {
		if _, kept := grouped[seq]; !kept {
			skipped++
		}
	}

	collapsed := make([]collapsedRequest, 0, len(order))
	for _, seq := range order {
		group := grouped[seq]
		// Stable sort by lead time so ties resolve to extract order,
		// with unresolved exams treated as zero lead.
		sort.SliceStable(group, func(i, j int) bool {
			return lineLeadTime(group[i], exams) < lineLeadTime(group[j], exams)
		})
		shortest, longest := group[0], group[len(group)-1]

		c := collapsedRequest{
			line:         longest,
			leadTimeDays: lineLeadTime(longest, exams),
		}
		if facilityID, ok := facilities[longest.FacilityCode]; ok {
			c.facilityID = &facilityID
		}
		if shortest.ClinicCode != nil {
			if clinicID, ok := clinics[*shortest.ClinicCode]; ok {
				c.clinicID = &clinicID
			}
		}
		collapsed = append(collapsed, c)
	}
	return collapsed, skipped
}

func lineLeadTime(l ExtractLine, exams map[string]ExamInfo) int {
	if info, ok := exams[l.ExamCode]; ok {
		return info.LeadTimeDays
	}
	return 0
}

func (r *Reconciler) expectedRelease(requestDate *time.Time, leadTimeDays int) *time.Time {
	if requestDate == nil {
		return nil
	}
	expected := r.Calendar.AddBusinessDays(*requestDate, leadTimeDays)
	return &expected
}

func (r *Reconciler) buildInsert(employer models.Employer, c collapsedRequest, expected *time.Time, today time.Time) models.ExamRequest {
	leadTime := c.leadTimeDays
	tag := ComputeTag(expected, today)
	now := today
	return models.ExamRequest{
		SequenceID:           c.line.SequenceID,
		CompanyPrincipalCode: employer.CompanyPrincipalCode,
		EmployerID:           employer.ID,
		FacilityID:           c.facilityID,
		ClinicID:             c.clinicID,
		EmployeeCode:         c.line.EmployeeCode,
		EmployeeName:         c.line.EmployeeName,
		EmployeeTaxID:        c.line.EmployeeTaxID,
		RequestDate:          c.line.RequestDate,
		ExamTypeCode:         c.line.ExamTypeCode,
		LeadTimeDays:         &leadTime,
		ExpectedReleaseDate:  expected,
		StatusID:             models.StatusPendingID,
		ReleaseTag:           &tag,
		CreatedBy:            serverActor,
		UpdatedBy:            serverActor,
		LastServerUpdate:     &now,
	}
}

func buildUpdate(prior KnownRequest, c collapsedRequest, expected *time.Time, finalizing map[int]bool, today time.Time) RequestUpdate {
	current := models.TagNoForecast
	if prior.ReleaseTag != nil {
		current = *prior.ReleaseTag
	}
	dateChanged := !sameDate(prior.RequestDate, c.line.RequestDate)

	tag := UpdateTag(dateChanged, prior.StatusID, expected, current, today)
	recomputed := dateChanged && prior.StatusID != models.StatusReceivedID
	if recomputed && finalizing[prior.StatusID] {
		tag = models.TagOk
	}

	leadTime := c.leadTimeDays
	return RequestUpdate{
		ID:                  prior.ID,
		LeadTimeDays:        &leadTime,
		ExpectedReleaseDate: expected,
		ClinicID:            c.clinicID,
		ReleaseTag:          tag,
		UpdatedBy:           serverActor,
	}
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return dateOnly(*a).Equal(dateOnly(*b))
}

func stringKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	return keys
}

func intKeys(set map[int]bool) []int {
	keys := make([]int, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	return keys
}
