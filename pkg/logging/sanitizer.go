package logging

import (
	"regexp"
	"strings"
)

// RedactedText replaces anything removed by the sanitizers.
const RedactedText = "[REDACTED]"

type redaction struct {
	pattern *regexp.Regexp
	repl    string
}

var (
	// password=, pwd= and pass= with a quoted value, or up to the next
	// delimiter or enclosing quote.
	keyValueSecret = redaction{regexp.MustCompile(`(?i)(password|pwd|pass)=(?:'[^']*'|[^;&\s"']+)`), "${1}=" + RedactedText}

	// user:pass@host in URLs.
	urlCredentials = redaction{regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s]+`), "://" + RedactedText + "@" + RedactedText}

	bearerToken = redaction{regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_]+\.[A-Za-z0-9-_]+\.[A-Za-z0-9-_]*`), "Bearer " + RedactedText}

	// Dashed FEINs (12-3456789) and SSNs (123-45-6789) from insured records.
	taxID = redaction{regexp.MustCompile(`\b(?:\d{2}-\d{7}|\d{3}-\d{2}-\d{4})\b`), RedactedText}

	connectionRedactions = []redaction{keyValueSecret, urlCredentials}
	errorRedactions      = []redaction{keyValueSecret, bearerToken, urlCredentials, taxID}
)

func redact(s string, rules []redaction) string {
	for _, r := range rules {
		s = r.pattern.ReplaceAllString(s, r.repl)
	}
	return s
}

// SanitizeConnectionString strips credentials from a DSN or URL before it is logged.
func SanitizeConnectionString(connStr string) string {
	return redact(connStr, connectionRedactions)
}

// SanitizeError renders err with credentials, bearer tokens and insured tax IDs removed.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return redact(err.Error(), errorRedactions)
}

// MaskTaxID keeps only the last four digits of a tax ID for log fields.
// "12-3456789" becomes "*****6789". IDs with four or fewer digits are fully masked.
func MaskTaxID(id string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, id)

	if len(digits) <= 4 {
		return strings.Repeat("*", len(digits))
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}
