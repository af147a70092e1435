package matcher

import (
	"strconv"
	"strings"
)

// DecodeValue converts a captured group to a number. A second character of
// 'x' or 'X' selects base 16 for the rest of the string, a '.' selects a
// float, and anything else is parsed as a base 10 integer.
func DecodeValue(s string) (float64, error) {
	if len(s) > 1 && (s[1] == 'x' || s[1] == 'X') {
		n, err := strconv.ParseInt(s[2:], 16, 64)
		if err != nil {
			return 0, err
		}
		return float64(n), nil
	}
	if strings.Contains(s, ".") {
		return strconv.ParseFloat(s, 64)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return float64(n), nil
}
