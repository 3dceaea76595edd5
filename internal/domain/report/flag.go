package report

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	FlagNormal = "Normal"
	FlagLow    = "Low"
	FlagHigh   = "High"
	FlagNone   = ""
)

const number = `[-+]?(?:\d+(?:\.\d*)?|\.\d+)`

// A range may carry trailing text such as units ("10-20 mg/dL"). The last
// number must not run into another digit, dot or dash.
const rangeEnd = `\s*(?:$|[^\d.\-])`

var (
	betweenPattern    = regexp.MustCompile(`^\s*(` + number + `)\s*-\s*(` + number + `)` + rangeEnd)
	comparisonPattern = regexp.MustCompile(`^\s*(<=|>=|<|>)\s*(` + number + `)` + rangeEnd)
)

// ValidFlag reports whether flag may be supplied explicitly by a caller.
func ValidFlag(flag string) bool {
	switch flag {
	case FlagNormal, FlagLow, FlagHigh, FlagNone:
		return true
	}
	return false
}

// ComputeFlag classifies a numeric result against a normal range written as
// "min-max" or as a single bound such as "<5" or ">= 40", optionally followed
// by units or a note. A result that is not a number or a range in any other
// shape yields FlagNone.
func ComputeFlag(result, normalRange string) string {
	value, ok := parseNumber(result)
	if !ok {
		return FlagNone
	}

	if m := betweenPattern.FindStringSubmatch(normalRange); m != nil {
		lo, _ := strconv.ParseFloat(m[1], 64)
		hi, _ := strconv.ParseFloat(m[2], 64)
		switch {
		case value < lo:
			return FlagLow
		case value > hi:
			return FlagHigh
		default:
			return FlagNormal
		}
	}

	if m := comparisonPattern.FindStringSubmatch(normalRange); m != nil {
		threshold, _ := strconv.ParseFloat(m[2], 64)
		switch m[1] {
		case "<", "<=":
			if value >= threshold {
				return FlagHigh
			}
		case ">", ">=":
			if value <= threshold {
				return FlagLow
			}
		}
		return FlagNormal
	}

	return FlagNone
}

// ResolveFlag prefers an explicit flag over the computed one.
func ResolveFlag(result, normalRange, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return ComputeFlag(result, normalRange)
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
