package constants

// JobStatus is the canonical lifecycle state for an extraction job.
type JobStatus string

// Stable values (store these exact strings in the DB and webhook payloads).
const (
	JobStatusQueued      JobStatus = "queued"       // accepted, not yet picked up
	JobStatusProcessing  JobStatus = "processing"   // pipeline running
	JobStatusCompleted   JobStatus = "completed"    // terminal: validated clean
	JobStatusNeedsReview JobStatus = "needs_review" // terminal: best-effort result, flagged
	JobStatusFailed      JobStatus = "failed"       // terminal: fatal error
)

// Terminal reports whether s is a terminal state. Terminal jobs are immutable.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusNeedsReview, JobStatusFailed:
		return true
	}
	return false
}

// ValidationStatus is the validator's verdict on one extracted record.
type ValidationStatus string

const (
	ValidationValid       ValidationStatus = "valid"
	ValidationNeedsReview ValidationStatus = "needs_review"
)

// Engine identifiers reported in results and webhook payloads.
const (
	EngineTier1 = "tier1"
	EngineTier2 = "tier2"
	EngineNone  = "none"
)

// Advisory OCR confidence hints, distinct from the validator's score.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
)
