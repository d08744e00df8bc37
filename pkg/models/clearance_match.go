package models

import (
	"time"

	"github.com/google/uuid"
)

// MatchType identifies which signal produced a clearance match.
type MatchType string

const (
	MatchTypeID      MatchType = "id_match"      // Normalized tax IDs are identical
	MatchTypeName    MatchType = "name_match"    // Normalized insured names are similar
	MatchTypeAddress MatchType = "address_match" // Normalized mailing addresses are similar
)

// ClearanceMatch is one piece of duplicate evidence between two submissions.
// Stored in uw_clearance_matches table. Values are not modified after NewClearanceMatch.
type ClearanceMatch struct {
	ID                      uuid.UUID `json:"id"`
	SubmissionID            uuid.UUID `json:"submission_id"`
	MatchedSubmissionID     uuid.UUID `json:"matched_submission_id"`
	MatchedSubmissionNumber string    `json:"matched_submission_number"`
	MatchType               MatchType `json:"match_type"`
	ConfidenceScore         float64   `json:"confidence_score"`
	MatchDetails            string    `json:"match_details"`
	DetectedAt              time.Time `json:"detected_at"`
}

// NewClearanceMatch builds a match with a fresh ID. The score is clamped to [0,1].
func NewClearanceMatch(
	submissionID uuid.UUID,
	matched SubmissionSnapshot,
	matchType MatchType,
	score float64,
	details string,
	detectedAt time.Time,
) ClearanceMatch {
	return ClearanceMatch{
		ID:                      uuid.New(),
		SubmissionID:            submissionID,
		MatchedSubmissionID:     matched.ID,
		MatchedSubmissionNumber: matched.SubmissionNumber,
		MatchType:               matchType,
		ConfidenceScore:         clampUnit(score),
		MatchDetails:            details,
		DetectedAt:              detectedAt,
	}
}

func clampUnit(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
