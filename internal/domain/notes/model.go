package notes

import (
	"time"

	"github.com/google/uuid"
)

// Note statuses.
const (
	StatusGenerated = "generated"
	StatusFailed    = "failed"
)

// Note maps to the note table: one generated clinical note for one encounter.
type Note struct {
	ID          uuid.UUID `db:"id" json:"id"`
	EncounterID string    `db:"encounter_id" json:"encounter_id"`
	PatientName *string   `db:"patient_name" json:"patient_name,omitempty"`
	Prompt      string    `db:"prompt" json:"prompt"`
	Body        string    `db:"body" json:"body"`
	Model       string    `db:"model" json:"model"`
	Status      string    `db:"status" json:"status"`
	Error       *string   `db:"error" json:"error,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
