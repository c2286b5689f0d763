package complaint

import (
	"time"

	"github.com/google/uuid"

	"github.com/ehr/intake/internal/domain/terminology"
)

// CodingOutcome records how one consumed message was handled. It is a log of
// lookups, never consulted when coding later messages.
type CodingOutcome struct {
	ID             uuid.UUID          `json:"id"`
	ChiefComplaint string             `json:"chief_complaint"`
	Status         terminology.Status `json:"status"`
	Code           string             `json:"code,omitempty"`
	Display        string             `json:"display,omitempty"`
	Error          string             `json:"error,omitempty"`
	ReceivedAt     time.Time          `json:"received_at"`
	Duration       time.Duration      `json:"-"`
	DurationMS     int64              `json:"duration_ms"`
}

// NewOutcome builds the ledger entry for a coder result.
func NewOutcome(res terminology.Result, receivedAt time.Time, took time.Duration) *CodingOutcome {
	o := &CodingOutcome{
		ID:             uuid.New(),
		ChiefComplaint: res.Complaint,
		Status:         res.Status(),
		ReceivedAt:     receivedAt,
		Duration:       took,
		DurationMS:     took.Milliseconds(),
	}
	switch o.Status {
	case terminology.StatusCoded:
		o.Code = res.Candidate.Code
		o.Display = res.Candidate.Display
	case terminology.StatusError:
		o.Error = res.Err.Error()
	}
	return o
}
