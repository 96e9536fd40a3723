// Package numbering assigns the human-facing display numbers (PREFIX-NNNNNN)
// given to saved parcels. Numbers are gap-filled: the smallest positive
// integer not in use within a county prefix is always handed out next.
package numbering

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Digits is the zero-padded width of the numeric suffix.
const Digits = 6

// MaxNumber is the largest suffix representable in Digits digits.
const MaxNumber = 999999

var displayNumberPattern = regexp.MustCompile(`^([A-Z]{3})-(\d{6})$`)

// Format renders a display number, e.g. Format("BUR", 7) == "BUR-000007".
func Format(prefix string, n int) string {
	return fmt.Sprintf("%s-%0*d", prefix, Digits, n)
}

// Parse splits a well-formed display number into prefix and suffix.
func Parse(displayNumber string) (prefix string, n int, ok bool) {
	m := displayNumberPattern.FindStringSubmatch(displayNumber)
	if m == nil {
		return "", 0, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}
	return m[1], n, true
}

// IsValid reports whether s has the PREFIX-NNNNNN shape.
func IsValid(s string) bool {
	return displayNumberPattern.MatchString(s)
}

// suffixes extracts the numeric suffixes of values belonging to prefix.
// Anything not matching PREFIX-NNNNNN exactly is skipped.
func suffixes(prefix string, values []string) []int {
	head := prefix + "-"
	out := make([]int, 0, len(values))
	for _, v := range values {
		if !strings.HasPrefix(v, head) || len(v) != len(head)+Digits {
			continue
		}
		digits := v[len(head):]
		if !allDigits(digits) {
			continue
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// SmallestUnused returns the smallest positive integer not present in used.
func SmallestUnused(used []int) int {
	sorted := append([]int(nil), used...)
	sort.Ints(sorted)

	next := 1
	for _, n := range sorted {
		if n == next {
			next++
		} else if n > next {
			break
		}
	}
	return next
}

// NextFree computes the next display number for prefix given the persisted
// numbers and any reserved-but-unsaved numbers from the current session.
func NextFree(prefix string, persisted, reserved []string) (string, error) {
	used := suffixes(prefix, persisted)
	used = append(used, suffixes(prefix, reserved)...)

	next := SmallestUnused(used)
	if next > MaxNumber {
		return "", fmt.Errorf("%w: %s", ErrNamespaceExhausted, prefix)
	}
	return Format(prefix, next), nil
}
