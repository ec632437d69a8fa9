package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Format selects how the input file is decoded.
type Format string

const (
	// FormatAuto picks FormatJSON when the file starts with '[' and
	// FormatNDJSON otherwise.
	FormatAuto   Format = "auto"
	FormatJSON   Format = "json"
	FormatNDJSON Format = "ndjson"
)

// ParseFormat maps a configuration value onto a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatAuto, FormatJSON, FormatNDJSON:
		return f, nil
	case "":
		return FormatAuto, nil
	default:
		return "", fmt.Errorf("unknown dataset format %q", s)
	}
}

// Loader reads records from a file on disk. It keeps no state between calls,
// so it is safe for concurrent use and always reflects the current file.
type Loader struct {
	path   string
	format Format
}

func NewLoader(path string, format Format) *Loader {
	if format == "" {
		format = FormatAuto
	}
	return &Loader{path: path, format: format}
}

func (l *Loader) Path() string {
	return l.path
}

func (l *Loader) Format() Format {
	return l.format
}

// Load reads and decodes the whole file. Every failure is reported as an
// *UnavailableError.
func (l *Loader) Load(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, l.unavailable(err)
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, l.unavailable(err)
	}

	records, err := Decode(data, l.format)
	if err != nil {
		return nil, l.unavailable(err)
	}

	return records, nil
}

func (l *Loader) unavailable(err error) error {
	return &UnavailableError{Path: l.path, Err: err}
}

// Decode parses data according to format.
func Decode(data []byte, format Format) ([]Record, error) {
	switch format {
	case FormatJSON:
		return decodeArray(data)
	case FormatNDJSON:
		return decodeLines(data)
	case FormatAuto, "":
		if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
			return decodeArray(data)
		}
		return decodeLines(data)
	default:
		return nil, fmt.Errorf("unknown dataset format %q", format)
	}
}

func decodeArray(data []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("expected a JSON array of records")
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("decode array: %w", err)
	}

	records := make([]Record, 0, len(raw))
	for i, item := range raw {
		rec, err := decodeObject(item)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, rec)
	}

	return records, nil
}

func decodeLines(data []byte) ([]Record, error) {
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))

	records := make([]Record, 0, len(lines))
	for i, line := range lines {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		rec, err := decodeObject(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		records = append(records, rec)
	}

	return records, nil
}

func decodeObject(data []byte) (Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return Record{}, fmt.Errorf("expected a JSON object")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Record{}, err
	}

	return Record{
		PetalLength: toNumber(fields[KeyPetalLength]),
		PetalWidth:  toNumber(fields[KeyPetalWidth]),
		Variety:     toText(fields[KeyVariety]),
	}, nil
}

var (
	numericString = regexp.MustCompile(`^[+-]?(Infinity|(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?)$`)
	hexString     = regexp.MustCompile(`^0[xX][0-9a-fA-F]+$`)
)

// toNumber converts a raw JSON value to a float64, yielding NaN when the
// key is absent or the value has no numeric reading.
func toNumber(raw json.RawMessage) float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return math.NaN()
	}

	switch raw[0] {
	case 'n':
		return 0
	case 't':
		return 1
	case 'f':
		return 0
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return math.NaN()
		}
		return stringToNumber(s)
	case '{', '[':
		return math.NaN()
	}

	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return math.NaN()
	}
	return v
}

func stringToNumber(s string) float64 {
	s = strings.TrimFunc(s, isSpace)
	switch {
	case s == "":
		return 0
	case hexString.MatchString(s):
		v, err := strconv.ParseFloat(s+"p0", 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return math.NaN()
		}
		return v
	case !numericString.MatchString(s):
		return math.NaN()
	}

	switch strings.TrimPrefix(s, "+") {
	case "Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return math.NaN()
	}
	return v
}

func isSpace(r rune) bool {
	return r == '\uFEFF' || (unicode.IsSpace(r) && r != '\u0085')
}

// toText returns strings unquoted and any other scalar in its JSON form.
// A missing key or null yields "".
func toText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
