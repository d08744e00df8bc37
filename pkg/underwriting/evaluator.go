package underwriting

import (
	"strings"

	"github.com/shopspring/decimal"
)

// EvaluateCondition applies c to actual, where nil means the value is absent.
// String comparisons are case-insensitive. Numeric operators return false when
// either side fails to parse as a decimal.
func EvaluateCondition(c RuleCondition, actual *string) bool {
	switch c.Operator {
	case OperatorIsEmpty:
		return isBlank(actual)
	case OperatorIsNotEmpty:
		return !isBlank(actual)
	case OperatorEquals:
		return actual != nil && strings.EqualFold(*actual, c.Value)
	case OperatorNotEquals:
		return actual == nil || !strings.EqualFold(*actual, c.Value)
	case OperatorContains:
		return actual != nil && strings.Contains(strings.ToUpper(*actual), strings.ToUpper(c.Value))
	case OperatorStartsWith:
		return actual != nil && strings.HasPrefix(strings.ToUpper(*actual), strings.ToUpper(c.Value))
	case OperatorEndsWith:
		return actual != nil && strings.HasSuffix(strings.ToUpper(*actual), strings.ToUpper(c.Value))
	case OperatorIn:
		return inList(actual, c.Value)
	case OperatorNotIn:
		return !inList(actual, c.Value)
	case OperatorGreaterThan:
		return compareDecimal(actual, c.Value, func(cmp int) bool { return cmp > 0 })
	case OperatorGreaterThanOrEqual:
		return compareDecimal(actual, c.Value, func(cmp int) bool { return cmp >= 0 })
	case OperatorLessThan:
		return compareDecimal(actual, c.Value, func(cmp int) bool { return cmp < 0 })
	case OperatorLessThanOrEqual:
		return compareDecimal(actual, c.Value, func(cmp int) bool { return cmp <= 0 })
	case OperatorBetween:
		return between(actual, c.Value, c.SecondaryValue)
	default:
		return false
	}
}

func isBlank(v *string) bool {
	return v == nil || strings.TrimSpace(*v) == ""
}

func inList(actual *string, list string) bool {
	if isBlank(actual) {
		return false
	}
	for _, token := range strings.Split(list, ",") {
		if strings.EqualFold(strings.TrimSpace(token), *actual) {
			return true
		}
	}
	return false
}

func parseDecimal(v string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

func compareDecimal(actual *string, value string, ok func(cmp int) bool) bool {
	if actual == nil {
		return false
	}
	a, parsed := parseDecimal(*actual)
	if !parsed {
		return false
	}
	v, parsed := parseDecimal(value)
	if !parsed {
		return false
	}
	return ok(a.Cmp(v))
}

func between(actual *string, lower string, upper *string) bool {
	if actual == nil || upper == nil {
		return false
	}
	a, ok := parseDecimal(*actual)
	if !ok {
		return false
	}
	lo, ok := parseDecimal(lower)
	if !ok {
		return false
	}
	hi, ok := parseDecimal(*upper)
	if !ok {
		return false
	}
	return a.GreaterThanOrEqual(lo) && a.LessThanOrEqual(hi)
}
