package types

import (
	"fmt"
	"regexp"
)

// MRN represents a medical record number (10 digits).
// Format: RRNNNNNNNK where:
// - RR: issuing registry code
// - NNNNNNN: sequential number
// - K: Luhn check digit
type MRN string

var mrnRegex = regexp.MustCompile(`^\d{10}$`)

// ParseMRN validates and parses an MRN string
func ParseMRN(s string) (MRN, error) {
	if !mrnRegex.MatchString(s) {
		return "", fmt.Errorf("MRN must be exactly 10 digits")
	}

	mrn := MRN(s)
	if !mrn.IsValid() {
		return "", fmt.Errorf("invalid MRN check digit")
	}

	return mrn, nil
}

// NewMRN builds an MRN from a two-digit registry code and a seven-digit
// sequential number, appending the Luhn check digit.
func NewMRN(registry string, seq int) (MRN, error) {
	if len(registry) != 2 || !mrnRegex.MatchString(registry+"00000000") {
		return "", fmt.Errorf("registry code must be exactly 2 digits")
	}
	if seq < 0 || seq > 9999999 {
		return "", fmt.Errorf("sequential number out of range")
	}

	body := fmt.Sprintf("%s%07d", registry, seq)

	sum := 0
	double := true
	for i := len(body) - 1; i >= 0; i-- {
		d := int(body[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	checkDigit := (10 - sum%10) % 10

	return MRN(fmt.Sprintf("%s%d", body, checkDigit)), nil
}

// String returns the string representation
func (m MRN) String() string {
	return string(m)
}

// Masked returns a masked version for display (last 4 digits visible)
func (m MRN) Masked() string {
	if len(m) < 10 {
		return "**********"
	}
	return "******" + string(m)[6:]
}

// IsValid validates the MRN check digit using the Luhn algorithm
func (m MRN) IsValid() bool {
	if len(m) != 10 {
		return false
	}

	sum := 0
	double := true
	for i := len(m) - 2; i >= 0; i-- {
		d := int(m[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}

	checkDigit := (10 - sum%10) % 10
	return int(m[9]-'0') == checkDigit
}

// IsZero checks if the MRN is empty
func (m MRN) IsZero() bool {
	return m == ""
}
