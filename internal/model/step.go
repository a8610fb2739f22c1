package model

import "time"

// StepRecord is a ledger row marking a data migration step as applied.
type StepRecord struct {
	Name      string    `json:"name"`
	RunID     string    `json:"run_id"`
	AppliedAt time.Time `json:"applied_at"`
	Rows      int       `json:"rows"`
}
