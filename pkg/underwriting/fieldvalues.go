package underwriting

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/keystone-uw/underwriting-engine/pkg/models"
)

// FieldValuesFromSubmission extracts every field the submission carries.
// Numbers are plain decimal strings, dates are YYYY-MM-DD, and unset values
// are omitted so conditions see them as null.
func FieldValuesFromSubmission(s *models.Submission) FieldValues {
	v := FieldValues{}

	setString(v, FieldInsuredName, s.Insured.Name)
	setString(v, FieldInsuredState, s.Insured.State)
	setString(v, FieldNAICSCode, s.Insured.NAICSCode)
	setInt(v, FieldYearsInBusiness, s.Insured.YearsInBusiness)
	setDecimal(v, FieldAnnualRevenue, s.Insured.AnnualRevenue)
	setInt(v, FieldEmployeeCount, s.Insured.EmployeeCount)
	if addr := s.Insured.MailingAddress; addr != nil {
		setString(v, FieldMailingCity, addr.City)
		setString(v, FieldMailingState, addr.State)
		setString(v, FieldMailingPostal, addr.PostalCode)
	}

	setString(v, FieldCoverageType, s.Coverage.Type)
	setDecimal(v, FieldRequestedLimit, s.Coverage.RequestedLimit)
	setDecimal(v, FieldDeductible, s.Coverage.Deductible)
	if s.Coverage.EffectiveDate != nil {
		v[FieldEffectiveDate] = s.Coverage.EffectiveDate.UTC().Format(time.DateOnly)
	}

	setInt(v, FieldClaimCount, s.LossHistory.ClaimCount)
	setDecimal(v, FieldTotalIncurred, s.LossHistory.TotalIncurred)
	setInt(v, FieldLossHistoryYears, s.LossHistory.Years)

	setString(v, FieldConstructionType, s.Property.ConstructionType)
	setInt(v, FieldYearBuilt, s.Property.YearBuilt)
	setInt(v, FieldSquareFootage, s.Property.SquareFootage)
	setString(v, FieldOccupancy, s.Property.Occupancy)

	setString(v, FieldSubmissionNumber, s.SubmissionNumber)
	setString(v, FieldBrokerName, s.BrokerName)
	setString(v, FieldBrokerEmail, s.BrokerEmail)
	setString(v, FieldClearanceStatus, string(s.ClearanceStatus))
	setInt(v, FieldAppetiteScore, s.AppetiteScore)

	return v
}

func setString(v FieldValues, f Field, s string) {
	if s != "" {
		v[f] = s
	}
}

func setInt(v FieldValues, f Field, n *int) {
	if n != nil {
		v[f] = strconv.Itoa(*n)
	}
}

func setDecimal(v FieldValues, f Field, d *decimal.Decimal) {
	if d != nil {
		v[f] = d.String()
	}
}
