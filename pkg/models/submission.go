package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubmissionStatus is the workflow state of a submission.
type SubmissionStatus string

const (
	SubmissionStatusReceived    SubmissionStatus = "received"
	SubmissionStatusInClearance SubmissionStatus = "in_clearance"
	SubmissionStatusCleared     SubmissionStatus = "cleared"
	SubmissionStatusDuplicate   SubmissionStatus = "duplicate"
	SubmissionStatusInReview    SubmissionStatus = "in_review"
	SubmissionStatusQuoted      SubmissionStatus = "quoted"
	SubmissionStatusDeclined    SubmissionStatus = "declined"
	SubmissionStatusBound       SubmissionStatus = "bound"
	SubmissionStatusWithdrawn   SubmissionStatus = "withdrawn"
)

// IsOpen reports whether a submission in this status is still subject to clearance.
func (s SubmissionStatus) IsOpen() bool {
	return s == SubmissionStatusReceived || s == SubmissionStatusInClearance
}

// ClearanceStatus is the outcome of the most recent clearance check.
type ClearanceStatus string

const (
	ClearanceStatusPending    ClearanceStatus = "pending"
	ClearanceStatusClear      ClearanceStatus = "clear"
	ClearanceStatusConflict   ClearanceStatus = "conflict"
	ClearanceStatusOverridden ClearanceStatus = "overridden"
)

// Address is a postal mailing address.
type Address struct {
	Street1    string `json:"street1" validate:"required"`
	Street2    string `json:"street2,omitempty"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state" validate:"required,len=2"`
	PostalCode string `json:"postal_code" validate:"required"`
}

// Insured describes the applicant business.
type Insured struct {
	Name            string           `json:"name"`
	TaxID           string           `json:"tax_id,omitempty"`
	NAICSCode       string           `json:"naics_code,omitempty"`
	State           string           `json:"state,omitempty"`
	YearsInBusiness *int             `json:"years_in_business,omitempty"`
	AnnualRevenue   *decimal.Decimal `json:"annual_revenue,omitempty"`
	EmployeeCount   *int             `json:"employee_count,omitempty"`
	MailingAddress  *Address         `json:"mailing_address,omitempty"`
}

// Coverage describes the requested insurance.
type Coverage struct {
	Type           string           `json:"type,omitempty"`
	RequestedLimit *decimal.Decimal `json:"requested_limit,omitempty"`
	Deductible     *decimal.Decimal `json:"deductible,omitempty"`
	EffectiveDate  *time.Time       `json:"effective_date,omitempty"`
}

// LossHistory aggregates the insured's prior claims.
type LossHistory struct {
	ClaimCount    *int             `json:"claim_count,omitempty"`
	TotalIncurred *decimal.Decimal `json:"total_incurred,omitempty"`
	Years         *int             `json:"years,omitempty"`
}

// PropertyDetails describes the insured location for property lines.
type PropertyDetails struct {
	ConstructionType string `json:"construction_type,omitempty"`
	YearBuilt        *int   `json:"year_built,omitempty"`
	SquareFootage    *int   `json:"square_footage,omitempty"`
	Occupancy        string `json:"occupancy,omitempty"`
}

// Submission is a broker submission for a new policy.
// Stored in uw_submissions table.
type Submission struct {
	ID                  uuid.UUID        `json:"id"`
	TenantID            uuid.UUID        `json:"tenant_id"`
	SubmissionNumber    string           `json:"submission_number"`
	Status              SubmissionStatus `json:"status"`
	ClearanceStatus     ClearanceStatus  `json:"clearance_status"`
	Insured             Insured          `json:"insured"`
	Coverage            Coverage         `json:"coverage"`
	LossHistory         LossHistory      `json:"loss_history"`
	Property            PropertyDetails  `json:"property"`
	BrokerName          string           `json:"broker_name,omitempty"`
	BrokerEmail         string           `json:"broker_email,omitempty"`
	AssignedUnderwriter string           `json:"assigned_underwriter,omitempty"`
	AppetiteScore       *int             `json:"appetite_score,omitempty"`
	ReceivedAt          time.Time        `json:"received_at"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// Snapshot returns the subset of the submission that clearance compares.
func (s *Submission) Snapshot() SubmissionSnapshot {
	snap := SubmissionSnapshot{
		ID:               s.ID,
		TenantID:         s.TenantID,
		SubmissionNumber: s.SubmissionNumber,
		InsuredName:      s.Insured.Name,
	}
	if s.Insured.TaxID != "" {
		taxID := s.Insured.TaxID
		snap.InsuredTaxID = &taxID
	}
	if s.Insured.MailingAddress != nil {
		addr := *s.Insured.MailingAddress
		snap.MailingAddress = &addr
	}
	return snap
}

// SubmissionSnapshot is the read-only view of a submission used for clearance.
type SubmissionSnapshot struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	SubmissionNumber string
	InsuredName      string
	InsuredTaxID     *string
	MailingAddress   *Address
}
