package socsync

import (
	"testing"
	"time"

	"bitbucket.org/grsnucleo/ocupacional_backend/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(t time.Time) *time.Time { return &t }

func TestComputeTag(t *testing.T) {
	today := day(2024, time.June, 10)

	cases := []struct {
		name     string
		expected *time.Time
		want     models.ReleaseTag
	}{
		{"no expected date", nil, models.TagNoForecast},
		{"date in the past", datePtr(day(2024, time.June, 5)), models.TagOverdue},
		{"yesterday", datePtr(day(2024, time.June, 9)), models.TagOverdue},
		{"today", datePtr(day(2024, time.June, 10)), models.TagPleaseRequest},
		{"tomorrow", datePtr(day(2024, time.June, 11)), models.TagPleaseRequest},
		{"last day of grace window", datePtr(day(2024, time.June, 12)), models.TagPleaseRequest},
		{"just past grace window", datePtr(day(2024, time.June, 13)), models.TagOnTrack},
		{"far future", datePtr(day(2024, time.September, 1)), models.TagOnTrack},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeTag(tc.expected, today)
			if got != tc.want {
				t.Fatalf("ComputeTag(%v) = %v, want %v", tc.expected, got, tc.want)
			}
		})
	}
}

func TestComputeTagIgnoresTimeOfDay(t *testing.T) {
	today := time.Date(2024, time.June, 10, 23, 59, 0, 0, time.UTC)
	expected := time.Date(2024, time.June, 10, 0, 1, 0, 0, time.UTC)

	if got := ComputeTag(&expected, today); got != models.TagPleaseRequest {
		t.Fatalf("same calendar day should fall in the grace window, got %v", got)
	}
}

func TestUpdateTagKeepsTagWhenDateUnchanged(t *testing.T) {
	today := day(2024, time.June, 10)
	expected := datePtr(day(2024, time.June, 5))

	got := UpdateTag(false, models.StatusPendingID, expected, models.TagOnTrack, today)
	if got != models.TagOnTrack {
		t.Fatalf("unchanged date must keep the stored tag, got %v", got)
	}
}

func TestUpdateTagKeepsTagWhenStatusReceived(t *testing.T) {
	today := day(2024, time.June, 10)
	expected := datePtr(day(2024, time.June, 5))

	got := UpdateTag(true, models.StatusReceivedID, expected, models.TagOk, today)
	if got != models.TagOk {
		t.Fatalf("received requests must keep the stored tag even when the date moved, got %v", got)
	}
}

func TestUpdateTagRecomputesWhenDateChanged(t *testing.T) {
	today := day(2024, time.June, 10)

	got := UpdateTag(true, models.StatusPendingID, datePtr(day(2024, time.June, 5)), models.TagOnTrack, today)
	if got != models.TagOverdue {
		t.Fatalf("changed date on a pending request must recompute, got %v", got)
	}

	got = UpdateTag(true, models.StatusPendingID, nil, models.TagOnTrack, today)
	if got != models.TagNoForecast {
		t.Fatalf("changed date with no forecast must recompute to no-forecast, got %v", got)
	}
}
