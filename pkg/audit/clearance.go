// Package audit records underwriting decisions that must be traceable after the
// fact. Events are written as structured zap entries under the
// "clearance_audit" logger so they can be routed to a separate sink.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/keystone-uw/underwriting-engine/pkg/auth"
)

// EventType categorizes audit events for filtering.
type EventType string

const (
	// EventClearanceOverride is logged when an underwriter clears a submission despite matches.
	EventClearanceOverride EventType = "clearance_override"
	// EventGuidelineStatusChange is logged when a guideline is activated, deactivated or archived.
	EventGuidelineStatusChange EventType = "guideline_status_change"
)

// Event is the JSON document written for every audit record.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	EventType EventType `json:"event_type"`
	TenantID  uuid.UUID `json:"tenant_id"`
	SubjectID uuid.UUID `json:"subject_id"`
	UserID    string    `json:"user_id,omitempty"`
	Details   any       `json:"details"`
}

// OverrideDetails describes a clearance override.
type OverrideDetails struct {
	SubmissionNumber string      `json:"submission_number"`
	PreviousStatus   string      `json:"previous_status"`
	Reason           string      `json:"reason"`
	MatchCount       int         `json:"match_count"`
	MatchedIDs       []uuid.UUID `json:"matched_submission_ids,omitempty"`
}

// StatusChangeDetails describes a guideline lifecycle transition.
type StatusChangeDetails struct {
	GuidelineName string `json:"guideline_name"`
	From          string `json:"from"`
	To            string `json:"to"`
	Version       int    `json:"version"`
}

// ClearanceAuditor writes audit events. A nil *ClearanceAuditor discards them.
type ClearanceAuditor struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewClearanceAuditor creates an auditor logging under the "clearance_audit" namespace.
func NewClearanceAuditor(logger *zap.Logger) *ClearanceAuditor {
	return &ClearanceAuditor{
		logger: logger.Named("clearance_audit"),
		now:    time.Now,
	}
}

// LogOverride records that userID overrode the clearance result of a submission.
// When userID is empty the caller's JWT subject is used.
func (a *ClearanceAuditor) LogOverride(ctx context.Context, tenantID, submissionID uuid.UUID, userID string, details OverrideDetails) {
	if a == nil {
		return
	}
	if userID == "" {
		userID = auth.GetUserIDFromContext(ctx)
	}

	event := a.newEvent(EventClearanceOverride, tenantID, submissionID, userID, details)
	eventJSON, _ := json.Marshal(event)

	// Overrides bypass duplicate protection, so they are logged at WARN.
	a.logger.Warn("Clearance overridden",
		zap.String("event_json", string(eventJSON)),
		zap.String("event_type", string(EventClearanceOverride)),
		zap.String("tenant_id", tenantID.String()),
		zap.String("submission_id", submissionID.String()),
		zap.String("submission_number", details.SubmissionNumber),
		zap.String("user_id", userID),
		zap.Int("match_count", details.MatchCount),
	)
}

// LogGuidelineStatusChange records a guideline lifecycle transition.
func (a *ClearanceAuditor) LogGuidelineStatusChange(ctx context.Context, tenantID, guidelineID uuid.UUID, details StatusChangeDetails) {
	if a == nil {
		return
	}
	userID := auth.GetUserIDFromContext(ctx)

	event := a.newEvent(EventGuidelineStatusChange, tenantID, guidelineID, userID, details)
	eventJSON, _ := json.Marshal(event)

	a.logger.Info("Guideline status changed",
		zap.String("event_json", string(eventJSON)),
		zap.String("event_type", string(EventGuidelineStatusChange)),
		zap.String("tenant_id", tenantID.String()),
		zap.String("guideline_id", guidelineID.String()),
		zap.String("from", details.From),
		zap.String("to", details.To),
		zap.String("user_id", userID),
	)
}

func (a *ClearanceAuditor) newEvent(t EventType, tenantID, subjectID uuid.UUID, userID string, details any) Event {
	return Event{
		Timestamp: a.now().UTC(),
		EventType: t,
		TenantID:  tenantID,
		SubjectID: subjectID,
		UserID:    userID,
		Details:   details,
	}
}
