package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Accepted date layouts, most specific last
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// ExportTimeLayout is how timestamps are rendered in exports
const ExportTimeLayout = "2006-01-02 15:04:05"

// Day zero of spreadsheet date serials
var excelEpoch = [3]int{1899, 12, 30}

// ParseTime accepts the supported layouts and spreadsheet date serials.
// Values without an offset are interpreted in loc.
func ParseTime(raw interface{}, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v == nil {
			return time.Time{}, fmt.Errorf("empty date")
		}
		return *v, nil
	case float64:
		return excelSerial(v, loc)
	case int:
		return excelSerial(float64(v), loc)
	case int64:
		return excelSerial(float64(v), loc)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q", v.String())
		}
		return excelSerial(f, loc)
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, s, loc); err == nil {
				return t, nil
			}
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return excelSerial(f, loc)
		}
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", s)
	default:
		return time.Time{}, fmt.Errorf("invalid date %v", raw)
	}
}

func excelSerial(serial float64, loc *time.Location) (time.Time, error) {
	if serial <= 0 || math.IsNaN(serial) || math.IsInf(serial, 0) || serial > 2958465 {
		return time.Time{}, fmt.Errorf("invalid date serial %v", serial)
	}
	days := math.Floor(serial)
	seconds := math.Round((serial - days) * 86400)
	base := time.Date(excelEpoch[0], time.Month(excelEpoch[1]), excelEpoch[2], 0, 0, 0, 0, loc)
	return base.AddDate(0, 0, int(days)).Add(time.Duration(seconds) * time.Second), nil
}

// startOfDay truncates t to midnight in loc
func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func isBlank(raw interface{}) bool {
	if raw == nil {
		return true
	}
	if s, ok := raw.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	rv := reflect.ValueOf(raw)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}

// coerce converts raw into a value whose type is exactly the column's field type
func coerce(col *Column, raw interface{}, loc *time.Location) (interface{}, error) {
	target := col.field.FieldType
	base := col.field.IndirectFieldType

	if isBlank(raw) {
		return reflect.Zero(target).Interface(), nil
	}
	if rv := reflect.ValueOf(raw); rv.Type() == target {
		return raw, nil
	}

	var (
		parsed interface{}
		err    error
	)
	switch col.Kind {
	case KindString:
		parsed = toString(raw)
	case KindInt:
		parsed, err = toInt(raw)
	case KindUint:
		parsed, err = toUint(raw)
	case KindFloat:
		parsed, err = toFloat(raw)
	case KindBool:
		parsed, err = toBool(raw)
	case KindTime:
		parsed, err = ParseTime(raw, loc)
	case KindJSON:
		parsed, err = toJSON(raw)
	default:
		return nil, fmt.Errorf("cannot assign %T", raw)
	}
	if err != nil {
		return nil, err
	}

	v := reflect.ValueOf(parsed)
	if !v.Type().ConvertibleTo(base) {
		return nil, fmt.Errorf("cannot assign %T", raw)
	}
	v = v.Convert(base)
	if overflows(v, parsed) {
		return nil, fmt.Errorf("value %v out of range", parsed)
	}
	if target.Kind() == reflect.Ptr {
		p := reflect.New(base)
		p.Elem().Set(v)
		return p.Interface(), nil
	}
	return v.Interface(), nil
}

func overflows(v reflect.Value, parsed interface{}) bool {
	switch n := parsed.(type) {
	case int64:
		return v.Kind() >= reflect.Int && v.Kind() <= reflect.Int64 && v.OverflowInt(n)
	case uint64:
		return v.Kind() >= reflect.Uint && v.Kind() <= reflect.Uintptr && v.OverflowUint(n)
	}
	return false
}

func toString(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(raw)
	}
}

func toInt(raw interface{}) (int64, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("must be a whole number")
		}
		return int64(v), nil
	case json.Number:
		return toInt(v.String())
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		// spreadsheets render integers as "12.0"
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) {
			return int64(f), nil
		}
		return 0, fmt.Errorf("must be a whole number")
	default:
		return 0, fmt.Errorf("must be a whole number")
	}
}

func toUint(raw interface{}) (uint64, error) {
	switch v := raw.(type) {
	case uint:
		return uint64(v), nil
	case uint64:
		return v, nil
	case *uint:
		if v == nil {
			return 0, fmt.Errorf("must be a positive whole number")
		}
		return uint64(*v), nil
	}
	n, err := toInt(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("must be a positive whole number")
	}
	return uint64(n), nil
}

func toFloat(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("must be a number")
		}
		return f, nil
	default:
		return 0, fmt.Errorf("must be a number")
	}
}

func toBool(raw interface{}) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true, nil
		case "0", "f", "false", "n", "no":
			return false, nil
		}
	case json.Number:
		return toBool(v.String())
	case float64:
		if v == 0 || v == 1 {
			return v == 1, nil
		}
	}
	return false, fmt.Errorf("must be true or false")
}

func toJSON(raw interface{}) ([]byte, error) {
	switch v := raw.(type) {
	case string:
		b := []byte(strings.TrimSpace(v))
		if !json.Valid(b) {
			return nil, fmt.Errorf("must be valid JSON")
		}
		return b, nil
	case []byte:
		if !json.Valid(v) {
			return nil, fmt.Errorf("must be valid JSON")
		}
		return v, nil
	case json.RawMessage:
		return toJSON([]byte(v))
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("must be valid JSON")
		}
		return b, nil
	}
}

// render formats a column value for a spreadsheet cell
func render(v interface{}, loc *time.Location) string {
	switch val := deref(v).(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val.In(loc).Format(ExportTimeLayout)
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case []byte:
		return string(val)
	case json.RawMessage:
		return string(val)
	default:
		rv := reflect.ValueOf(val)
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return string(rv.Bytes())
		}
		return fmt.Sprint(val)
	}
}
