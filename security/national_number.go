package security

import (
	"errors"
	"strings"
)

// ErrInvalidNationalNumber is returned for anything but 11 digits once dots
// and dashes are stripped.
var ErrInvalidNationalNumber = errors.New("national number must be exactly 11 digits long")

// CleanNationalNumber strips the usual separators and checks the length.
func CleanNationalNumber(raw string) (string, error) {
	clean := strings.NewReplacer(".", "", "-", "", " ", "").Replace(raw)
	if len(clean) != 11 {
		return "", ErrInvalidNationalNumber
	}
	for _, r := range clean {
		if r < '0' || r > '9' {
			return "", ErrInvalidNationalNumber
		}
	}
	return clean, nil
}

// FormatNationalNumber renders 11 digits as YY.MM.DD-XXX.CC. Other input is
// returned unchanged.
func FormatNationalNumber(digits string) string {
	if len(digits) != 11 {
		return digits
	}
	return digits[0:2] + "." + digits[2:4] + "." + digits[4:6] + "-" + digits[6:9] + "." + digits[9:11]
}
