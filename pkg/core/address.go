package core

import (
	"fmt"
	"strconv"
	"strings"
)

// StreetPrefix is the prefix of every generated address label
const StreetPrefix = "Street "

// FormatStreetAddress builds the synthetic address label for a street number
func FormatStreetAddress(number int) string {
	return fmt.Sprintf("%s%d", StreetPrefix, number)
}

// StreetNumber extracts the street number from a generated address label
func StreetNumber(address string) (int, bool) {
	if !strings.HasPrefix(address, StreetPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(address, StreetPrefix))
	if err != nil {
		return 0, false
	}
	return n, true
}
