package normalize

// Dictionary holds the token tables used for name and address canonicalization.
// A locale can supply its own Dictionary through NewNormalizer without touching call sites.
type Dictionary struct {
	// EntitySuffixes are legal-entity designators removed from the end of insured names.
	EntitySuffixes []string
	// StreetAbbreviations maps a street-line token to its canonical abbreviation.
	StreetAbbreviations map[string]string
}

var usEntitySuffixes = []string{
	"LLC",
	"INC",
	"CORP",
	"LTD",
	"CO",
	"COMPANY",
	"CORPORATION",
	"INCORPORATED",
	"LIMITED",
}

var usStreetAbbreviations = map[string]string{
	"STREET":    "ST",
	"AVENUE":    "AVE",
	"BOULEVARD": "BLVD",
	"DRIVE":     "DR",
	"LANE":      "LN",
	"ROAD":      "RD",
	"COURT":     "CT",
	"PLACE":     "PL",
	"CIRCLE":    "CIR",
	"HIGHWAY":   "HWY",
	"PARKWAY":   "PKWY",
	"SUITE":     "STE",
	"APARTMENT": "APT",
	"NORTH":     "N",
	"SOUTH":     "S",
	"EAST":      "E",
	"WEST":      "W",
}

// USDictionary returns a copy of the built-in US English tables.
func USDictionary() Dictionary {
	suffixes := make([]string, len(usEntitySuffixes))
	copy(suffixes, usEntitySuffixes)

	abbreviations := make(map[string]string, len(usStreetAbbreviations))
	for k, v := range usStreetAbbreviations {
		abbreviations[k] = v
	}

	return Dictionary{
		EntitySuffixes:      suffixes,
		StreetAbbreviations: abbreviations,
	}
}
