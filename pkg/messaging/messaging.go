package messaging

import (
	"context"
	"time"
)

// ReportSender defines an interface for publishing run reports.
// It keeps the server package independent of the Kafka client in use.
type ReportSender interface {
	SendRunReport(ctx context.Context, report *RunReport) error
	Close() error
}

// RunReport describes one completed dispatcher operation
type RunReport struct {
	Desk           string    `json:"desk"`
	Algorithm      string    `json:"algorithm"`
	Steps          int       `json:"steps"`
	Matches        int       `json:"matches"`
	Collection     int       `json:"collection"`
	DurationMicros int64     `json:"duration_micros"`
	RequestID      string    `json:"request_id,omitempty"`
	At             time.Time `json:"at"`
}

// Key returns the partitioning key of the report
func (r *RunReport) Key() []byte {
	return []byte(r.Desk)
}
