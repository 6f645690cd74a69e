// Package analytics defines the events emitted by the ingest pipeline and
// the sweeper, plus the tracker that tallies them.
package analytics

import "time"

const (
	TopicRecordIngested = "referral.record.ingested"
	TopicRecordExpired  = "referral.record.expired"
)

// RecordIngestedEvent is emitted whenever a new referral record is stored,
// whether by the pipeline or by a direct API insert.
type RecordIngestedEvent struct {
	RecordID   string    `json:"recordId"`
	Brand      string    `json:"brand"`
	Code       string    `json:"code,omitempty"`
	Link       string    `json:"link,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	Source     string    `json:"source,omitempty"`
	IngestedAt time.Time `json:"ingestedAt"`
}

// RecordExpiredEvent is emitted when the sweeper invalidates a record.
type RecordExpiredEvent struct {
	RecordID       string    `json:"recordId"`
	Brand          string    `json:"brand"`
	ExpirationDate time.Time `json:"expirationDate"`
	SweptAt        time.Time `json:"sweptAt"`
	SweepID        string    `json:"sweepId"`
}
