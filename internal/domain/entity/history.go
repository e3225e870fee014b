package entity

import "time"

// HistoryEntry is one line of a request's audit trail
type HistoryEntry struct {
	Sequence  int       `json:"sequence"`
	Stage     Stage     `json:"stage"`
	Outcome   Outcome   `json:"outcome"`
	Note      string    `json:"note"`
	Timestamp time.Time `json:"timestamp"`
}

// SubmissionNote is recorded as the first history entry of every request
const SubmissionNote = "request submitted"
