package ledger

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// nullMarkers are text values the source uses for "no value".
var nullMarkers = map[string]bool{
	"":     true,
	"NAN":  true,
	"NONE": true,
	"NULL": true,
	"NAT":  true,
	"<NA>": true,
	"NA":   true,
}

// dateLayouts are tried in order for date-only fields.
var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"2006-01-02",
}

// timestampLayouts are tried in order for the inclusion timestamp.
var timestampLayouts = []string{
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// rawText renders a cell as trimmed text without changing its case.
func rawText(v any) *string {
	var s string
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		s = val
	case []byte:
		s = string(val)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return rawText(float64(val))
	case int:
		s = strconv.Itoa(val)
	case int32:
		s = strconv.FormatInt(int64(val), 10)
	case int64:
		s = strconv.FormatInt(val, 10)
	case bool:
		s = strconv.FormatBool(val)
	case civil.Date:
		if val.IsZero() {
			return nil
		}
		s = val.String()
	case time.Time:
		if val.IsZero() {
			return nil
		}
		s = val.Format(time.RFC3339)
	case fmt.Stringer:
		s = val.String()
	default:
		s = fmt.Sprint(val)
	}

	s = strings.TrimSpace(s)
	if nullMarkers[strings.ToUpper(s)] {
		return nil
	}
	return &s
}

// normalizeText upper-cases and trims a text cell; null-like values become nil.
func normalizeText(v any) *string {
	s := rawText(v)
	if s == nil {
		return nil
	}
	up := strings.ToUpper(*s)
	return &up
}

// parseDate reads a calendar date. Anything unparseable yields the zero date.
func parseDate(v any) civil.Date {
	switch val := v.(type) {
	case civil.Date:
		return val
	case time.Time:
		if val.IsZero() {
			return civil.Date{}
		}
		return civil.DateOf(val)
	}

	s := rawText(v)
	if s == nil {
		return civil.Date{}
	}
	text := *s
	// Timestamps rendered as dates keep only the date part.
	if i := strings.IndexAny(text, " T"); i > 0 {
		text = text[:i]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return civil.DateOf(t)
		}
	}
	return civil.Date{}
}

// parseTimestamp reads the inclusion timestamp with best-effort formats.
func parseTimestamp(v any) time.Time {
	switch val := v.(type) {
	case time.Time:
		return val
	case civil.Date:
		if val.IsZero() {
			return time.Time{}
		}
		return val.In(time.UTC)
	}

	s := rawText(v)
	if s == nil {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// parseFloat reads a numeric cell. NaN, infinities and garbage yield nil.
func parseFloat(v any) *float64 {
	var f float64
	switch val := v.(type) {
	case nil:
		return nil
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int32:
		f = float64(val)
	case int64:
		f = float64(val)
	default:
		s := rawText(v)
		if s == nil {
			return nil
		}
		parsed, err := strconv.ParseFloat(*s, 64)
		if err != nil {
			return nil
		}
		f = parsed
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// parseID reads an identifier that looks numeric but must keep full precision.
// Integral text such as "9007199254740993" or "42.0" is accepted; fractions are not.
func parseID(v any) *big.Int {
	switch val := v.(type) {
	case nil:
		return nil
	case int:
		return big.NewInt(int64(val))
	case int32:
		return big.NewInt(int64(val))
	case int64:
		return big.NewInt(val)
	case float64:
		return integralFloat(big.NewFloat(0).SetFloat64(orZero(val)), val)
	case float32:
		return parseID(float64(val))
	}

	s := rawText(v)
	if s == nil {
		return nil
	}
	if n, ok := new(big.Int).SetString(*s, 10); ok {
		return n
	}
	f, _, err := big.ParseFloat(*s, 10, 256, big.ToNearestEven)
	if err != nil {
		return nil
	}
	return integralFloat(f, 0)
}

func integralFloat(f *big.Float, raw float64) *big.Int {
	if math.IsNaN(raw) || math.IsInf(raw, 0) || f.IsInf() || !f.IsInt() {
		return nil
	}
	n, _ := f.Int(nil)
	return n
}

func orZero(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
