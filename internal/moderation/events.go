package moderation

import (
	"time"

	"github.com/your-org/modflow/internal/classify"
)

// ModerationEvent is emitted after a session produces a verdict.
type ModerationEvent struct {
	SessionID       string           `json:"session_id"`
	MediaName       string           `json:"media_name"`
	JobID           string           `json:"job_id"`
	TaxonomyVersion string           `json:"taxonomy_version"`
	Categories      classify.Tally   `json:"categories"`
	Verdict         classify.Verdict `json:"verdict"`
	StartedAt       time.Time        `json:"started_at"`
	FinishedAt      time.Time        `json:"finished_at"`
}
