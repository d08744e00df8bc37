package underwriting

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateCondition(t *testing.T) {
	tests := []struct {
		name      string
		op        Operator
		value     string
		secondary *string
		actual    *string
		want      bool
	}{
		// Emptiness
		{"is empty nil", OperatorIsEmpty, "", nil, nil, true},
		{"is empty whitespace", OperatorIsEmpty, "", nil, ptr("  "), true},
		{"is empty with value", OperatorIsEmpty, "", nil, ptr("x"), false},
		{"is not empty with value", OperatorIsNotEmpty, "", nil, ptr("x"), true},
		{"is not empty nil", OperatorIsNotEmpty, "", nil, nil, false},

		// Equality
		{"equals case-insensitive", OperatorEquals, "ca", nil, ptr("CA"), true},
		{"equals different", OperatorEquals, "CA", nil, ptr("NY"), false},
		{"equals nil", OperatorEquals, "CA", nil, nil, false},
		{"not equals different", OperatorNotEquals, "CA", nil, ptr("NY"), true},
		{"not equals same", OperatorNotEquals, "CA", nil, ptr("ca"), false},
		{"not equals nil", OperatorNotEquals, "CA", nil, nil, true},

		// Substring
		{"contains", OperatorContains, "ware", nil, ptr("WAREHOUSE"), true},
		{"contains missing", OperatorContains, "office", nil, ptr("WAREHOUSE"), false},
		{"contains nil", OperatorContains, "x", nil, nil, false},
		{"starts with", OperatorStartsWith, "ware", nil, ptr("Warehouse"), true},
		{"starts with nil", OperatorStartsWith, "ware", nil, nil, false},
		{"ends with", OperatorEndsWith, "HOUSE", nil, ptr("warehouse"), true},
		{"ends with no", OperatorEndsWith, "ware", nil, ptr("warehouse"), false},

		// Lists
		{"in trimmed tokens", OperatorIn, "CA, ny ,TX", nil, ptr("NY"), true},
		{"in missing", OperatorIn, "CA,NY", nil, ptr("FL"), false},
		{"in blank actual", OperatorIn, "CA,NY", nil, ptr(" "), false},
		{"in nil", OperatorIn, "CA,NY", nil, nil, false},
		{"not in missing", OperatorNotIn, "CA,NY", nil, ptr("FL"), true},
		{"not in present", OperatorNotIn, "CA,NY", nil, ptr("ca"), false},
		{"not in nil", OperatorNotIn, "CA,NY", nil, nil, true},

		// Numeric
		{"greater than", OperatorGreaterThan, "100", nil, ptr("100.01"), true},
		{"greater than equal values", OperatorGreaterThan, "100", nil, ptr("100.00"), false},
		{"greater than or equal", OperatorGreaterThanOrEqual, "100", nil, ptr("100.00"), true},
		{"less than", OperatorLessThan, "5", nil, ptr("-1"), true},
		{"less than or equal", OperatorLessThanOrEqual, "5", nil, ptr("5"), true},
		{"less than or equal above", OperatorLessThanOrEqual, "5", nil, ptr("6"), false},
		{"numeric whitespace trimmed", OperatorGreaterThan, " 10 ", nil, ptr(" 11 "), true},
		{"numeric actual unparsable", OperatorGreaterThan, "10", nil, ptr("ten"), false},
		{"numeric value unparsable", OperatorLessThan, "ten", nil, ptr("5"), false},
		{"numeric nil", OperatorGreaterThan, "10", nil, nil, false},

		// Between
		{"between inside", OperatorBetween, "10", ptr("20"), ptr("15"), true},
		{"between above", OperatorBetween, "10", ptr("20"), ptr("25"), false},
		{"between unparsable", OperatorBetween, "10", ptr("20"), ptr("abc"), false},
		{"between lower bound inclusive", OperatorBetween, "10", ptr("20"), ptr("10"), true},
		{"between upper bound inclusive", OperatorBetween, "10", ptr("20"), ptr("20"), true},
		{"between missing upper", OperatorBetween, "10", nil, ptr("15"), false},
		{"between bad upper", OperatorBetween, "10", ptr("x"), ptr("15"), false},
		{"between nil", OperatorBetween, "10", ptr("20"), nil, false},

		// Unknown
		{"unknown operator", Operator("regex"), ".*", nil, ptr("x"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := RuleCondition{Field: FieldAnnualRevenue, Operator: tt.op, Value: tt.value, SecondaryValue: tt.secondary}
			assert.Equal(t, tt.want, EvaluateCondition(c, tt.actual))
		})
	}
}
