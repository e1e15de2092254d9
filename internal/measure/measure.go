// Package measure turns free-text drink measures into fluid ounces.
//
// Parsing is lenient on purpose: text that cannot be read as a liquid volume
// yields a zero Measurement, which the rest of the system treats as a garnish.
package measure

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	mlToOz = 0.033814
	clToOz = 0.33814
)

// garnishWords mark a measure as non-liquid regardless of any number in it.
var garnishWords = []string{"slice", "wedge", "dash", "pinch", "sprig", "piece", "cube", "twist"}

var (
	mixedRx  = regexp.MustCompile(`^(\d+)\s+(\d+)/(\d+)`)
	unitRx   = regexp.MustCompile(`(oz|ounce|ounces|ml|cl)`)
	simpleRx = regexp.MustCompile(`^(\d+/\d+|\d+(?:\.\d+)?)\s*(oz|ounce|ounces|ml|cl)?`)
)

// Measurement is a parsed volume. Ounces == 0 means garnish / not dispensable.
type Measurement struct {
	Raw    string  `json:"raw"`
	Ounces float64 `json:"ounces"`
}

// IsLiquid reports whether the measurement carries a volume.
func (m Measurement) IsLiquid() bool { return m.Ounces > 0 }

// Parse reads raw as a volume. It never fails.
func Parse(raw string) Measurement {
	return Measurement{Raw: raw, Ounces: Ounces(raw)}
}

// Ounces is Parse without the wrapper.
func Ounces(raw string) float64 {
	txt := strings.ToLower(strings.TrimSpace(raw))
	if txt == "" {
		return 0
	}
	for _, w := range garnishWords {
		if strings.Contains(txt, w) {
			return 0
		}
	}

	var qty float64
	var unit string
	if m := mixedRx.FindStringSubmatch(txt); m != nil {
		whole, _ := strconv.ParseFloat(m[1], 64)
		num, _ := strconv.ParseFloat(m[2], 64)
		den, _ := strconv.ParseFloat(m[3], 64)
		if den == 0 {
			return 0
		}
		qty = whole + num/den
		if u := unitRx.FindString(txt); u != "" {
			unit = u
		}
	} else {
		m := simpleRx.FindStringSubmatch(txt)
		if m == nil {
			return 0
		}
		q, ok := parseNumber(m[1])
		if !ok {
			return 0
		}
		qty, unit = q, m[2]
	}

	switch unit {
	case "ml":
		qty *= mlToOz
	case "cl":
		qty *= clToOz
	}
	return Round2(qty)
}

func parseNumber(s string) (float64, bool) {
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, false
		}
		d, err := strconv.ParseFloat(den, 64)
		if err != nil || d == 0 {
			return 0, false
		}
		return n / d, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
