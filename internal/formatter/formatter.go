// Package formatter turns report figures into display strings.
package formatter

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"report-deck/internal/models"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	tenThousand = 10_000
	million     = 1_000_000

	suffixTenThousand = "만"
	suffixMillion     = "백만"
)

var printer = message.NewPrinter(language.Korean)

// FormatMagnitude abbreviates n with Korean scale suffixes: "백만" (only when
// withMillions is set) at one million and above, "만" at ten thousand and
// above, otherwise a digit-grouped integer.
func FormatMagnitude(n float64, withMillions bool) string {
	switch {
	case withMillions && n >= million:
		return fmt.Sprintf("%.1f%s", n/million, suffixMillion)
	case n >= tenThousand:
		return fmt.Sprintf("%.1f%s", n/tenThousand, suffixTenThousand)
	default:
		return GroupedInt(n)
	}
}

// Compact is the headline form: ten-thousands or plain.
func Compact(n float64) string {
	return FormatMagnitude(n, false)
}

// Full is the descriptive form that adds the million tier.
func Full(n float64) string {
	return FormatMagnitude(n, true)
}

// GroupedInt rounds n half-to-even and groups digits by thousands.
func GroupedInt(n float64) string {
	return printer.Sprintf("%d", int64(math.RoundToEven(n)))
}

// TenThousands renders n in units of ten thousand with one decimal.
func TenThousands(n float64) string {
	return fmt.Sprintf("%.1f", n/tenThousand)
}

// Percent returns part as a percentage of total; non-positive totals yield 0.
func Percent(part, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return part / total * 100
}

// FormatDate renders the first eight characters of a yyyyMMdd string as
// YYYY.MM.DD, or "" when fewer than eight characters are present.
func FormatDate(s string) string {
	return formatDate(s, ".")
}

// FormatDateDashed is FormatDate with dashes: YYYY-MM-DD.
func FormatDateDashed(s string) string {
	return formatDate(s, "-")
}

func formatDate(s, sep string) string {
	if utf8.RuneCountInString(s) < 8 {
		return ""
	}
	r := []rune(s)[:8]
	return string(r[0:4]) + sep + string(r[4:6]) + sep + string(r[6:8])
}

// SanitizeText drops everything that cannot be stored in the document: runes
// in the surrogate range, undecodable bytes, and U+FFFD, which is what the
// JSON decoder produces for an unpaired surrogate escape.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	s = strings.ToValidUTF8(s, "")
	return strings.Map(func(r rune) rune {
		if (r >= 0xD800 && r <= 0xDFFF) || r == utf8.RuneError {
			return -1
		}
		return r
	}, s)
}

// Ranking is a copy of the time bands ordered by exposure, highest first.
type Ranking []models.TimeBandExposure

// RankTimeBands sorts a copy of bands by exposure descending. The sort is
// stable so equal exposures keep their input order.
func RankTimeBands(bands []models.TimeBandExposure) Ranking {
	ranked := slices.Clone(bands)
	slices.SortStableFunc(ranked, func(a, b models.TimeBandExposure) int {
		return cmp.Compare(b.Exposure, a.Exposure)
	})
	return ranked
}

// Peak is the highest-exposure band, or nil when there are none.
func (r Ranking) Peak() *models.TimeBandExposure {
	return r.at(0)
}

// Second is the runner-up band, or nil when there are fewer than two.
func (r Ranking) Second() *models.TimeBandExposure {
	return r.at(1)
}

func (r Ranking) at(i int) *models.TimeBandExposure {
	if i >= len(r) {
		return nil
	}
	b := r[i]
	return &b
}
