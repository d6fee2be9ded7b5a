package history

import "time"

// Outcome is how a delivery was handled.
type Outcome string

const (
	OutcomeDeployed Outcome = "deployed" // deploy cycle succeeded
	OutcomeSkipped  Outcome = "skipped"  // event not in update_events
	OutcomeFailed   Outcome = "failed"   // deploy cycle failed
	OutcomeRejected Outcome = "rejected" // bad signature, header or payload
)

// DeliveryRecord is one row of the deliveries table.
type DeliveryRecord struct {
	ID                int64     `json:"id"`
	GUID              string    `json:"guid"`
	Event             string    `json:"event"`
	Outcome           Outcome   `json:"outcome"`
	StatusCode        int       `json:"status_code"`
	StartedAt         time.Time `json:"started_at"`
	DurationSeconds   *float64  `json:"duration_seconds,omitempty"` // nullable
	ExitCode          *int      `json:"exit_code,omitempty"`        // nullable
	ErrorMessage      *string   `json:"error_message,omitempty"`    // nullable
	ConfigFingerprint string    `json:"config_fingerprint,omitempty"`
}

// Status summarizes recent deliveries for the status endpoint.
type Status struct {
	Latest *DeliveryRecord   `json:"latest_delivery,omitempty"`
	Recent []DeliveryRecord  `json:"recent_deliveries"`
	Counts map[Outcome]int64 `json:"counts"`
}
