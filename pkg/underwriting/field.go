package underwriting

// Field names a submission attribute a condition can test.
type Field string

// Insured attributes
const (
	FieldInsuredName     Field = "insured_name"
	FieldInsuredState    Field = "insured_state"
	FieldYearsInBusiness Field = "years_in_business"
	FieldAnnualRevenue   Field = "annual_revenue"
	FieldEmployeeCount   Field = "employee_count"
	FieldMailingCity     Field = "mailing_city"
	FieldMailingState    Field = "mailing_state"
	FieldMailingPostal   Field = "mailing_postal_code"
)

// Industry codes
const (
	FieldNAICSCode Field = "naics_code"
)

// Coverage attributes
const (
	FieldCoverageType   Field = "coverage_type"
	FieldRequestedLimit Field = "requested_limit"
	FieldDeductible     Field = "deductible"
	FieldEffectiveDate  Field = "effective_date"
)

// Loss history aggregates
const (
	FieldClaimCount       Field = "claim_count"
	FieldTotalIncurred    Field = "total_incurred"
	FieldLossHistoryYears Field = "loss_history_years"
)

// Property attributes
const (
	FieldConstructionType Field = "construction_type"
	FieldYearBuilt        Field = "year_built"
	FieldSquareFootage    Field = "square_footage"
	FieldOccupancy        Field = "occupancy"
)

// Submission metadata
const (
	FieldSubmissionNumber Field = "submission_number"
	FieldBrokerName       Field = "broker_name"
	FieldBrokerEmail      Field = "broker_email"
	FieldClearanceStatus  Field = "clearance_status"
	FieldAppetiteScore    Field = "appetite_score"
)

var knownFields = map[Field]struct{}{
	FieldInsuredName:      {},
	FieldInsuredState:     {},
	FieldYearsInBusiness:  {},
	FieldAnnualRevenue:    {},
	FieldEmployeeCount:    {},
	FieldMailingCity:      {},
	FieldMailingState:     {},
	FieldMailingPostal:    {},
	FieldNAICSCode:        {},
	FieldCoverageType:     {},
	FieldRequestedLimit:   {},
	FieldDeductible:       {},
	FieldEffectiveDate:    {},
	FieldClaimCount:       {},
	FieldTotalIncurred:    {},
	FieldLossHistoryYears: {},
	FieldConstructionType: {},
	FieldYearBuilt:        {},
	FieldSquareFootage:    {},
	FieldOccupancy:        {},
	FieldSubmissionNumber: {},
	FieldBrokerName:       {},
	FieldBrokerEmail:      {},
	FieldClearanceStatus:  {},
	FieldAppetiteScore:    {},
}

// Valid reports whether f is one of the known fields.
func (f Field) Valid() bool {
	_, ok := knownFields[f]
	return ok
}

// FieldValues maps fields to the string form of a submission's values.
// A missing key is treated as null.
type FieldValues map[Field]string

// Lookup returns a pointer to the value for f, or nil if f is not set.
func (v FieldValues) Lookup(f Field) *string {
	val, ok := v[f]
	if !ok {
		return nil
	}
	return &val
}
