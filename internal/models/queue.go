package models

// QueueStatus is the polled waiting-room view. Admitted is true whenever
// no queue entry exists: a promoted user and a user who never queued take
// the same next step, so the two cases are deliberately not distinguished.
type QueueStatus struct {
	Rank                 int64 `json:"rank"`
	EstimatedWaitSeconds int64 `json:"estimated_wait_seconds"`
	Admitted             bool  `json:"admitted"`
}

// AdmissionNotice is pushed to a promoted user's notification stream.
type AdmissionNotice struct {
	EventID          string `json:"event_id"`
	UserID           string `json:"user_id"`
	ExpiresInSeconds int64  `json:"expires_in_seconds"`
}
