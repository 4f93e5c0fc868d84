package erp

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Row is one record from a listing response. Values keep their JSON types.
type Row map[string]any

// String returns the value at key as trimmed text. Numbers are rendered
// without exponent; null and missing keys yield "".
func (r Row) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

// Raw re-encodes the row for storage.
func (r Row) Raw() []byte {
	raw, err := json.Marshal(r)
	if err != nil {
		return []byte("{}")
	}
	return raw
}

// flexInt accepts both "123" and 123.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}
