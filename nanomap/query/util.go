package query

import (
	"fmt"
	"strconv"
	"time"

	"github.com/arthur-debert/nanomap/types"
)

// Normalize returns the string form field queries compare values by. Two
// values match when their normalised forms are equal.
func Normalize(value interface{}) string {
	return valueToString(value)
}

// FieldKey returns the normalised value of a dotted field path in doc
func FieldKey(doc types.Document, path string) (string, bool) {
	v, ok := lookupPath(doc, path)
	if !ok || v == nil {
		return "", false
	}
	return valueToString(v), true
}

// valueToString converts any value to a string for comparison
// Special handling for time.Time values to use RFC3339Nano format
func valueToString(value interface{}) string {
	switch v := value.(type) {
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case string:
		// Normalise datetime strings so they compare equal to time.Time values
		for _, format := range []string{
			time.RFC3339Nano,
			time.RFC3339,
			"2006-01-02 15:04:05",
		} {
			if t, err := time.Parse(format, v); err == nil {
				return t.Format(time.RFC3339Nano)
			}
		}
		return v
	case float64:
		// JSON numbers decode as float64; keep integral values comparable with ints
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return fmt.Sprintf("%v", value)
	}
}
