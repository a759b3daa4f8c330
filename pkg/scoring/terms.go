package scoring

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ScoreDescription names a hole result relative to par using standard
// golf terms, e.g. -1 is "birdie" and +4 is "4 over par".
func ScoreDescription(scoreToPar int) string {
	switch scoreToPar {
	case -3:
		return "albatross"
	case -2:
		return "eagle"
	case -1:
		return "birdie"
	case 0:
		return "par"
	case 1:
		return "bogey"
	case 2:
		return "double bogey"
	case 3:
		return "triple bogey"
	}
	if scoreToPar < 0 {
		return fmt.Sprintf("%d under par", -scoreToPar)
	}
	return fmt.Sprintf("%d over par", scoreToPar)
}

// ParStatus formats a cumulative score to par, e.g. "even par" or "3 under par".
func ParStatus(scoreToPar int) string {
	switch {
	case scoreToPar == 0:
		return "even par"
	case scoreToPar < 0:
		return fmt.Sprintf("%d under par", -scoreToPar)
	default:
		return fmt.Sprintf("%d over par", scoreToPar)
	}
}

// NormalizeName trims a first name and capitalizes it: "  bEN " becomes "Ben".
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + strings.ToLower(name[size:])
}
