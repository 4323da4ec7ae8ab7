package socsync

import (
	"context"
	"time"

	"bitbucket.org/grsnucleo/ocupacional_backend/models"
)

// Refresher re-derives the release tag of every exam request from today's
// date with one bulk statement per tag. Statements run in a fixed order and
// a row matching several conditions is rewritten by each one in turn, so
// within a sweep the finalizing-status statement has the last word. The next
// sweep starts over from the date conditions.
type Refresher struct {
	Store RequestStore
	Now   func() time.Time
}

func NewRefresher(store RequestStore) *Refresher {
	return &Refresher{Store: store, Now: time.Now}
}

// RefreshAllTags applies the tag statements and returns the summed affected
// row count. A row matching more than one statement is counted once per
// statement, so the total can exceed the number of rows touched.
func (r *Refresher) RefreshAllTags(ctx context.Context) (int64, error) {
	today := dateOnly(r.Now())

	steps := []struct {
		cond TagCondition
		tag  models.ReleaseTag
	}{
		{TagCondNoForecastDate, models.TagNoForecast},
		{TagCondPastDate, models.TagOverdue},
		{TagCondFutureDate, models.TagOnTrack},
		{TagCondGraceWindow, models.TagPleaseRequest},
		{TagCondFinalizingStatus, models.TagOk},
	}

	var affected int64
	for _, step := range steps {
		n, err := r.Store.UpdateTagWhere(ctx, step.cond, today, step.tag)
		if err != nil {
			return affected, err
		}
		affected += n
	}
	return affected, nil
}
