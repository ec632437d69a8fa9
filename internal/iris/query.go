package iris

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

const (
	ParamVariety        = "variety"
	ParamMinPetalLength = "min_petal_length"
)

// Query holds the per-request options. The zero value selects every record
// and omits the variety.
type Query struct {
	VarietyRequested bool
	MinPetalLength   *float64
}

// ParseQuery extracts a Query from URL parameters. It never fails: a
// missing or unparseable min_petal_length simply disables filtering.
func ParseQuery(values url.Values) Query {
	q := Query{
		VarietyRequested: values.Get(ParamVariety) == "true",
	}

	if raw, ok := values[ParamMinPetalLength]; ok && len(raw) > 0 {
		if min, ok := parseDecimalPrefix(raw[0]); ok {
			q.MinPetalLength = &min
		}
	}

	return q
}

// Threshold returns the minimum petal length and whether one is set.
func (q Query) Threshold() (float64, bool) {
	if q.MinPetalLength == nil {
		return 0, false
	}
	return *q.MinPetalLength, true
}

var decimalPrefix = regexp.MustCompile(`^[+-]?(Infinity|(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?)`)

// parseDecimalPrefix reads the longest leading decimal number of s, so
// "2.5cm" yields 2.5 and "abc" yields nothing.
func parseDecimalPrefix(s string) (float64, bool) {
	match := decimalPrefix.FindString(strings.TrimLeftFunc(s, isSpace))
	if match == "" {
		return 0, false
	}

	switch strings.TrimLeft(match, "+") {
	case "Infinity":
		return math.Inf(1), true
	case "-Infinity":
		return math.Inf(-1), true
	}

	v, err := strconv.ParseFloat(match, 64)
	if err != nil && !isRangeErr(err) {
		return 0, false
	}
	if math.IsNaN(v) {
		return 0, false
	}

	return v, true
}

// isSpace reports the characters skipped before a number: Unicode white
// space and line terminators plus the byte order mark, but not NEL.
func isSpace(r rune) bool {
	return r == '\uFEFF' || (unicode.IsSpace(r) && r != '\u0085')
}

func isRangeErr(err error) bool {
	numErr, ok := err.(*strconv.NumError)
	return ok && numErr.Err == strconv.ErrRange
}
