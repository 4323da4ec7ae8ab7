package models

// ReleaseTag classifies how urgent an exam request's expected release date is.
// The numeric values are persisted and must not be renumbered.
type ReleaseTag int

const (
	TagNoForecast    ReleaseTag = 1
	TagOk            ReleaseTag = 2
	TagPleaseRequest ReleaseTag = 3
	TagOnTrack       ReleaseTag = 4
	TagOverdue       ReleaseTag = 5
)

func (t ReleaseTag) String() string {
	switch t {
	case TagNoForecast:
		return "no_forecast"
	case TagOk:
		return "ok"
	case TagPleaseRequest:
		return "please_request"
	case TagOnTrack:
		return "on_track"
	case TagOverdue:
		return "overdue"
	}
	return "unknown"
}

// Seeded workflow status ids. Id 2 is the terminal "received" state the
// reconciliation update path treats as frozen.
const (
	StatusPendingID  = 1
	StatusReceivedID = 2
)

const (
	SyncRunStatusQueued  = "queued"
	SyncRunStatusRunning = "running"
	SyncRunStatusSuccess = "success"
	SyncRunStatusFailed  = "failed"
	SyncRunStatusPartial = "partial"
)

const (
	SyncTriggeredManual   = "manual"
	SyncTriggeredRetry    = "retry"
	SyncTriggeredSchedule = "schedule"
)

const (
	SyncRunKindReconcile  = "reconcile"
	SyncRunKindTagRefresh = "tag_refresh"
)
