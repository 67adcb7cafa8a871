package messaging

import (
	"context"
	"sync"
)

// MockSender is an in-memory ReportSender for testing. It records every
// report it receives and fails with Err when set.
type MockSender struct {
	mu      sync.Mutex
	reports []*RunReport
	closed  bool
	Err     error
}

// NewMockSender creates a new MockSender.
func NewMockSender() *MockSender {
	return &MockSender{}
}

// SendRunReport records the report.
func (m *MockSender) SendRunReport(_ context.Context, report *RunReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.reports = append(m.reports, report)
	return nil
}

// Reports returns the recorded reports.
func (m *MockSender) Reports() []*RunReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*RunReport, len(m.reports))
	copy(out, m.reports)
	return out
}

// Closed reports whether Close was called.
func (m *MockSender) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close marks the sender closed.
func (m *MockSender) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Ensure MockSender implements ReportSender
var _ ReportSender = (*MockSender)(nil)
