package conversation

import (
	"strconv"
	"strings"
)

// ParseAmount keeps only the ASCII digits of text and parses them as a
// non-negative integer. Text with no digits or a value beyond int64 is rejected.
func ParseAmount(text string) (int64, bool) {
	var digits strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	if digits.Len() == 0 {
		return 0, false
	}

	amount, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		return 0, false
	}

	return amount, true
}
