package session

import (
	"strings"
	"unicode"

	serrors "github.com/opd-ai/go-tor/pkg/errors"
)

// validateCountryCode accepts an empty string (meaning "unset") or a
// two-letter ISO-3166 alpha-2 code, case-insensitive, returned uppercased.
func validateCountryCode(cc string) (string, error) {
	if cc == "" {
		return "", nil
	}
	if len(cc) != 2 {
		return "", serrors.New(serrors.KindConfig, "country code must be exactly two letters")
	}
	for _, r := range cc {
		if !unicode.IsLetter(r) || r > unicode.MaxASCII {
			return "", serrors.New(serrors.KindConfig, "country code must be alphabetic")
		}
	}
	return strings.ToUpper(cc), nil
}
