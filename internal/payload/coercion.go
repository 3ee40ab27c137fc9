// internal/payload/coercion.go
package payload

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

/*
 * Type coercion for submitted rule and check fields.
 *
 * Payloads reach the validator from three decoders: encoding/json and
 * structpb (numbers as float64), yaml.v3 (int) and hand-built maps in tests
 * (int, int64, string). Coercion folds them into one view per field type.
 *
 * Field types:
 *   - INTEGER: Strict - integral float64/int/int64 or decimal strings
 *   - TEXT: Lenient - any scalar rendered as a string
 *   - ANY: Lenient - preserve original value
 *
 * Key distinction: nil is reported through IsNull, never as a failure, so
 * callers decide whether a null field counts as absent. Composite values
 * (maps, slices) always fail coercion; the validator reports them as
 * "Incorrect arguments passed to function."
 *
 * Canonical renders any scalar the way the duplicate detector compares it:
 * 161, 161.0 and "161" are all "161".
 */

// ErrCoercionFailed indicates a value cannot be represented as the requested type.
var ErrCoercionFailed = errors.New("type coercion failed")

// FieldType selects the coercion applied to a payload field.
type FieldType int

const (
	FieldTypeUnspecified FieldType = iota
	FieldTypeInteger
	FieldTypeText
	FieldTypeAny
)

// CoercionResult holds the coerced value or indicates null.
type CoercionResult struct {
	Value  any  // coerced value (valid only if !IsNull)
	IsNull bool // true if input was nil/null
}

// Coerce attempts to convert value to the expected field type.
// Returns CoercionResult with IsNull=true for nil input.
// Returns ErrCoercionFailed for impossible coercions.
func Coerce(value any, fieldType FieldType) (CoercionResult, error) {
	if value == nil {
		return CoercionResult{IsNull: true}, nil
	}
	if IsComposite(value) {
		return CoercionResult{}, ErrCoercionFailed
	}

	switch fieldType {
	case FieldTypeInteger:
		return coerceInteger(value)
	case FieldTypeText:
		return coerceText(value)
	case FieldTypeAny, FieldTypeUnspecified:
		return CoercionResult{Value: value}, nil
	default:
		return CoercionResult{}, ErrCoercionFailed
	}
}

// IsComposite reports whether v is a map or slice rather than a scalar.
func IsComposite(v any) bool {
	switch v.(type) {
	case map[string]any, []any, []string, []int, []map[string]any:
		return true
	}
	return false
}

// IsBlank reports whether v counts as an empty value: nil, false or "".
func IsBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case string:
		return t == ""
	}
	return false
}

// Int coerces v to int64. Null and composite input fail.
func Int(v any) (int64, error) {
	res, err := Coerce(v, FieldTypeInteger)
	if err != nil {
		return 0, err
	}
	if res.IsNull {
		return 0, ErrCoercionFailed
	}
	return res.Value.(int64), nil
}

// Text coerces v to string. Null renders as "".
func Text(v any) (string, error) {
	res, err := Coerce(v, FieldTypeText)
	if err != nil {
		return "", err
	}
	if res.IsNull {
		return "", nil
	}
	return res.Value.(string), nil
}

// Canonical renders a scalar for byte-wise comparison. Composite values
// render as an empty string so they never compare equal to a real scalar.
func Canonical(v any) string {
	if IsComposite(v) {
		return ""
	}
	if n, err := Int(v); err == nil {
		if _, isString := v.(string); !isString {
			return strconv.FormatInt(n, 10)
		}
	}
	s, _ := Text(v)
	return s
}

// coerceInteger converts value to int64.
// Accepts integral float64, int, int64 and decimal strings. Rejects booleans.
func coerceInteger(value any) (CoercionResult, error) {
	switch v := value.(type) {
	case int:
		return CoercionResult{Value: int64(v)}, nil
	case int32:
		return CoercionResult{Value: int64(v)}, nil
	case int64:
		return CoercionResult{Value: v}, nil
	case uint64:
		if v > math.MaxInt64 {
			return CoercionResult{}, ErrCoercionFailed
		}
		return CoercionResult{Value: int64(v)}, nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return CoercionResult{}, ErrCoercionFailed
		}
		return CoercionResult{Value: int64(v)}, nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			// Empty/whitespace-only strings are not valid numbers
			return CoercionResult{}, ErrCoercionFailed
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return CoercionResult{}, ErrCoercionFailed
		}
		return CoercionResult{Value: n}, nil
	case bool:
		return CoercionResult{}, ErrCoercionFailed
	default:
		return CoercionResult{}, ErrCoercionFailed
	}
}

// coerceText converts all scalar types to string representation.
func coerceText(value any) (CoercionResult, error) {
	switch v := value.(type) {
	case string:
		return CoercionResult{Value: v}, nil
	case float64:
		return CoercionResult{Value: strconv.FormatFloat(v, 'f', -1, 64)}, nil
	case int:
		return CoercionResult{Value: strconv.Itoa(v)}, nil
	case int32:
		return CoercionResult{Value: strconv.FormatInt(int64(v), 10)}, nil
	case int64:
		return CoercionResult{Value: strconv.FormatInt(v, 10)}, nil
	case uint64:
		return CoercionResult{Value: strconv.FormatUint(v, 10)}, nil
	case bool:
		// Matches how a loosely typed client stringifies flags.
		if v {
			return CoercionResult{Value: "1"}, nil
		}
		return CoercionResult{Value: ""}, nil
	default:
		return CoercionResult{}, ErrCoercionFailed
	}
}
