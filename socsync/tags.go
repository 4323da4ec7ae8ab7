package socsync

import (
	"time"

	"bitbucket.org/grsnucleo/ocupacional_backend/models"
)

// graceDays is the window before the expected release date during which the
// result should already be requested from the clinic.
const graceDays = 2

// ComputeTag derives the release tag from the expected release date alone.
// Status overrides are applied by the callers.
//
// The final branch is unreachable: a date equal to today is always caught by
// the grace window first. It is kept on purpose; removing it changes nothing
// observable but the fallback has been in production since the first release.
func ComputeTag(expected *time.Time, today time.Time) models.ReleaseTag {
	today = dateOnly(today)

	switch {
	case expected == nil:
		return models.TagNoForecast
	case dateOnly(*expected).Before(today):
		return models.TagOverdue
	case withinGraceWindow(dateOnly(*expected), today):
		return models.TagPleaseRequest
	case dateOnly(*expected).After(today):
		return models.TagOnTrack
	default:
		return models.TagNoForecast
	}
}

// UpdateTag is the variant used when re-reconciling an already stored
// request. The stored tag is kept untouched when the request date did not
// change, and also when the stored status is the terminal received state
// regardless of the date; otherwise the tag is recomputed from scratch.
func UpdateTag(dateChanged bool, statusID int, expected *time.Time, current models.ReleaseTag, today time.Time) models.ReleaseTag {
	if !dateChanged {
		return current
	}
	if statusID == models.StatusReceivedID {
		return current
	}
	return ComputeTag(expected, today)
}

func withinGraceWindow(expected, today time.Time) bool {
	for i := 0; i <= graceDays; i++ {
		if expected.Equal(today.AddDate(0, 0, i)) {
			return true
		}
	}
	return false
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
