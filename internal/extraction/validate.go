package extraction

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ValidationResult is the outcome of validating a single field value.
type ValidationResult struct {
	OK         bool
	Normalized string
	Reason     string
}

func validValue(normalized string) ValidationResult {
	return ValidationResult{OK: true, Normalized: normalized}
}

func invalidValue(reason string) ValidationResult {
	return ValidationResult{Reason: reason}
}

// ValidateSSN accepts 9 digits optionally separated by '-' or spaces and
// normalizes to XXX-XX-XXXX. Known-invalid area numbers (000, 666, 9XX) and
// all-identical digits are rejected.
func ValidateSSN(raw string) ValidationResult {
	digits := ssnDigits(raw)
	if digits == "" {
		return invalidValue("ssn must be 9 digits, optionally separated by '-' or spaces")
	}

	allSame := true
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return invalidValue("ssn digits are all identical")
	}

	area := digits[:3]
	if area == "000" || area == "666" || area[0] == '9' {
		return invalidValue("ssn area number " + area + " is not issued")
	}

	return validValue(digits[:3] + "-" + digits[3:5] + "-" + digits[5:])
}

// ValidatePhone accepts NANP numbers: 10 digits, optionally prefixed with a
// country code 1, with any common separators. Normalizes to (XXX) XXX-XXXX.
func ValidatePhone(raw string) ValidationResult {
	var digits []byte
	for _, r := range strings.TrimSpace(raw) {
		if r >= '0' && r <= '9' {
			digits = append(digits, byte(r))
		}
	}
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return invalidValue("phone must have 10 digits (NANP)")
	}
	return validValue(fmt.Sprintf("(%s) %s-%s", digits[:3], digits[3:6], digits[6:]))
}

var zipPattern = regexp.MustCompile(`^\d{5}(-\d{4})?$`)

// ValidateZip accepts DDDDD or DDDDD-DDDD after stripping internal
// whitespace.
func ValidateZip(raw string) ValidationResult {
	s := strings.Join(strings.Fields(raw), "")
	if !zipPattern.MatchString(s) {
		return invalidValue("zip must be DDDDD or DDDDD-DDDD")
	}
	return validValue(s)
}

// ValidateYear accepts years from 1950 through next year.
func ValidateYear(year int) ValidationResult {
	maxYear := time.Now().Year() + 1
	if year < 1950 || year > maxYear {
		return invalidValue(fmt.Sprintf("year must be in [1950, %d]", maxYear))
	}
	return validValue(fmt.Sprintf("%d", year))
}

// zipBase strips the optional +4 suffix for comparisons.
func zipBase(zip string) string {
	s := strings.Join(strings.Fields(zip), "")
	if i := strings.IndexByte(s, '-'); i >= 0 {
		return s[:i]
	}
	return s
}

// ValidateRecords normalizes every validatable field in place and returns a
// human-readable error per failing value. Invalid values stay on the record:
// they cost the format-validation confidence bonus and surface for review
// instead of being silently dropped.
func ValidateRecords(records []BorrowerRecord) []string {
	var errs []string
	for i := range records {
		r := &records[i]
		label := r.FullName
		if label == "" {
			label = fmt.Sprintf("record %d", i)
		}

		if r.SSN != "" {
			if res := ValidateSSN(r.SSN); res.OK {
				r.SSN = res.Normalized
			} else {
				errs = append(errs, fmt.Sprintf("%s: %s", label, res.Reason))
			}
		}
		if r.Phone != "" {
			if res := ValidatePhone(r.Phone); res.OK {
				r.Phone = res.Normalized
			} else {
				errs = append(errs, fmt.Sprintf("%s: %s", label, res.Reason))
			}
		}
		if r.Address.Zip != "" {
			if res := ValidateZip(r.Address.Zip); res.OK {
				r.Address.Zip = res.Normalized
			} else {
				errs = append(errs, fmt.Sprintf("%s: %s", label, res.Reason))
			}
		}
		for _, inc := range r.IncomeHistory {
			if res := ValidateYear(inc.Year); !res.OK {
				errs = append(errs, fmt.Sprintf("%s: income %s", label, res.Reason))
			}
		}
	}
	return errs
}
