package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"unicode/utf16"
)

// IRValue is a sealed interface over the values canonical JSON accepts.
// There is no float variant: floats are quantized into IRInt first.
type IRValue interface {
	irValue()
}

// IRNull is an explicit JSON null. Canonical marshaling rejects it.
type IRNull struct{}

func (IRNull) irValue() {}

// IRString is a string value.
type IRString string

func (IRString) irValue() {}

// IRInt is an integer value, and the quantized form of every float.
type IRInt int64

func (IRInt) irValue() {}

// IRBool is a boolean value.
type IRBool bool

func (IRBool) irValue() {}

// IRArray is an ordered list of values.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject maps string keys to values. Iterate with SortedKeys.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// Quantum is the fixed-point resolution of quantized floats: values are
// stored in micro-units.
const Quantum = 1e-6

// Quantize rounds f to the nearest Quantum. Non-finite values and values
// outside the int64 range are rejected.
func Quantize(f float64) (IRInt, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("cannot quantize non-finite value %v", f)
	}
	q := math.Round(f / Quantum)
	if q >= math.MaxInt64 || q <= math.MinInt64 {
		return 0, fmt.Errorf("value %v out of quantized range", f)
	}
	if q == 0 {
		// Avoid a distinct -0.
		return 0, nil
	}
	return IRInt(q), nil
}

// QuantizeVec quantizes the three components of v.
func QuantizeVec(v Vec3) (IRArray, error) {
	out := make(IRArray, 3)
	for i, f := range v {
		q, err := Quantize(f)
		if err != nil {
			return nil, fmt.Errorf("component %d: %w", i, err)
		}
		out[i] = q
	}
	return out, nil
}

// SortedKeys returns the keys in RFC 8785 order (UTF-16 code units).
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

// compareUTF16 orders strings by UTF-16 code units. Byte order differs for
// characters above the BMP.
func compareUTF16(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

// FromJSON converts arbitrary JSON into an IRValue. Every number, integral
// or not, is quantized, so 1 and 1.0 map to the same value. JSON null
// becomes IRNull.
func FromJSON(data []byte) (IRValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return fromDecoded(raw)
}

// ToIR marshals v with encoding/json and converts the result with FromJSON.
func ToIR(v any) (IRValue, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	return FromJSON(data)
}

func fromDecoded(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return IRNull{}, nil
	case bool:
		return IRBool(val), nil
	case string:
		return IRString(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %s: %w", val, err)
		}
		return Quantize(f)
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			e, err := fromDecoded(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = e
		}
		return arr, nil
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			e, err := fromDecoded(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = e
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
