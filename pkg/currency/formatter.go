package currency

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// MinorUnits is the number of minor units per major unit. Every supported
// currency is treated as having two decimal places.
const MinorUnits = 100

var ErrInvalidAmount = errors.New("invalid price amount")

var symbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"IDR": "IDR ",
}

// FromMajor converts a whole-unit price (as returned by metasearch APIs) to minor units.
func FromMajor(amount int) int64 {
	return int64(amount) * MinorUnits
}

// ParseMinor parses provider price strings such as "$1,268", "123.45" or
// "EUR 99" into minor units.
func ParseMinor(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsDigit(r), r == '.':
			b.WriteRune(r)
		case r == ',', unicode.IsSpace(r), unicode.IsLetter(r), unicode.IsSymbol(r):
			// currency codes, symbols and thousands separators
		case r == '-':
			return 0, fmt.Errorf("%w: negative amount %q", ErrInvalidAmount, s)
		default:
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
	}

	digits := b.String()
	if digits == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	whole, frac, hasFrac := strings.Cut(digits, ".")
	if strings.Contains(frac, ".") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if whole == "" {
		whole = "0"
	}
	major, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	var minor int64
	if hasFrac && frac != "" {
		if len(frac) > 2 {
			frac = frac[:2]
		}
		for len(frac) < 2 {
			frac += "0"
		}
		minor, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
	}

	return major*MinorUnits + minor, nil
}

// FormatMinor renders a minor-unit amount for display, e.g. 126850 USD -> "$1,268.50".
func FormatMinor(amount int64, code string) string {
	code = strings.ToUpper(code)
	negative := amount < 0
	if negative {
		amount = -amount
	}

	major := amount / MinorUnits
	minor := amount % MinorUnits

	sep := ","
	if code == "IDR" {
		sep = "."
	}
	formatted := addThousandsSeparator(strconv.FormatInt(major, 10), sep)
	if code != "IDR" {
		formatted = fmt.Sprintf("%s.%02d", formatted, minor)
	}

	prefix, ok := symbols[code]
	if !ok {
		prefix = code + " "
	}
	result := prefix + formatted
	if negative {
		result = "-" + result
	}

	return result
}

func addThousandsSeparator(s string, sep string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	numSeps := (n - 1) / 3
	result := make([]byte, n+numSeps)

	j := len(result) - 1
	for i := n - 1; i >= 0; i-- {
		result[j] = s[i]
		j--

		pos := n - i
		if pos%3 == 0 && i > 0 {
			result[j] = sep[0]
			j--
		}
	}

	return string(result)
}
