package underwriting

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/keystone-uw/underwriting-engine/pkg/models"
)

func TestFieldValuesFromSubmission(t *testing.T) {
	revenue := decimal.RequireFromString("2500000.50")
	limit := decimal.NewFromInt(1000000)
	effective := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	sub := &models.Submission{
		SubmissionNumber: "SUB-1",
		ClearanceStatus:  models.ClearanceStatusClear,
		BrokerName:       "Marsh",
		Insured: models.Insured{
			Name:            "Acme Corp",
			State:           "CA",
			NAICSCode:       "236220",
			YearsInBusiness: ptr(12),
			AnnualRevenue:   &revenue,
			MailingAddress:  &models.Address{Street1: "1 Main", City: "Fresno", State: "CA", PostalCode: "93650"},
		},
		Coverage: models.Coverage{
			Type:           "GL",
			RequestedLimit: &limit,
			EffectiveDate:  &effective,
		},
		LossHistory: models.LossHistory{ClaimCount: ptr(0)},
		Property:    models.PropertyDetails{YearBuilt: ptr(1998)},
	}

	v := FieldValuesFromSubmission(sub)

	assert.Equal(t, "Acme Corp", v[FieldInsuredName])
	assert.Equal(t, "CA", v[FieldInsuredState])
	assert.Equal(t, "236220", v[FieldNAICSCode])
	assert.Equal(t, "12", v[FieldYearsInBusiness])
	assert.Equal(t, "2500000.5", v[FieldAnnualRevenue])
	assert.Equal(t, "Fresno", v[FieldMailingCity])
	assert.Equal(t, "93650", v[FieldMailingPostal])
	assert.Equal(t, "GL", v[FieldCoverageType])
	assert.Equal(t, "1000000", v[FieldRequestedLimit])
	assert.Equal(t, "2026-07-01", v[FieldEffectiveDate])
	assert.Equal(t, "0", v[FieldClaimCount])
	assert.Equal(t, "1998", v[FieldYearBuilt])
	assert.Equal(t, "SUB-1", v[FieldSubmissionNumber])
	assert.Equal(t, "Marsh", v[FieldBrokerName])
	assert.Equal(t, "clear", v[FieldClearanceStatus])

	// Unset values are absent so conditions see null.
	assert.Nil(t, v.Lookup(FieldDeductible))
	assert.Nil(t, v.Lookup(FieldEmployeeCount))
	assert.Nil(t, v.Lookup(FieldOccupancy))
	assert.Nil(t, v.Lookup(FieldAppetiteScore))
}

func TestFieldValuesFromSubmission_DrivesRules(t *testing.T) {
	revenue := decimal.NewFromInt(15)
	sub := &models.Submission{Insured: models.Insured{AnnualRevenue: &revenue}}

	c := mustCondition(t, FieldAnnualRevenue, OperatorBetween, "10", ptr("20"))
	v := FieldValuesFromSubmission(sub)
	assert.True(t, EvaluateCondition(c, v.Lookup(FieldAnnualRevenue)))
}

func TestFieldValues_Lookup(t *testing.T) {
	v := FieldValues{FieldInsuredName: ""}

	got := v.Lookup(FieldInsuredName)
	if assert.NotNil(t, got) {
		assert.Equal(t, "", *got)
	}
	assert.Nil(t, v.Lookup(FieldInsuredState))
	assert.Nil(t, FieldValues(nil).Lookup(FieldInsuredState))
}
