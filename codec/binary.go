package codec

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Values that structpb cannot hold exactly are written as a two-field struct
// {"$t": <kind>, "$v": <payload>}. A user mapping that itself contains "$t"
// is wrapped as kind "map" so it is never mistaken for a tagged value.
const (
	tagKey   = "$t"
	tagValue = "$v"

	kindMap     = "map"
	kindBytes   = "bytes"
	kindInt     = "int"
	kindInt8    = "int8"
	kindInt16   = "int16"
	kindInt32   = "int32"
	kindInt64   = "int64"
	kindUint    = "uint"
	kindUint8   = "uint8"
	kindUint16  = "uint16"
	kindUint32  = "uint32"
	kindUint64  = "uint64"
	kindFloat32 = "float32"
)

var bitSizes = map[string]int{
	kindInt: strconv.IntSize, kindInt8: 8, kindInt16: 16, kindInt32: 32, kindInt64: 64,
	kindUint: strconv.IntSize, kindUint8: 8, kindUint16: 16, kindUint32: 32, kindUint64: 64,
}

// LoadBinary reads a mapping previously written by SaveBinary. A missing file
// returns an empty mapping. Content that cannot be decoded returns an error
// wrapping ErrCorruptStore.
func LoadBinary(path string) (map[string]any, error) {
	data, ok, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]any{}, nil
	}

	return DecodeBinary(data)
}

// SaveBinary replaces the file at path with the binary encoding of data.
func SaveBinary(path string, data map[string]any) error {
	encoded, err := EncodeBinary(data)
	if err != nil {
		return err
	}
	return writeFile(path, encoded)
}

// EncodeBinary converts data into its binary wire form. Output is
// deterministic for equal inputs.
//
// Supported values are nil, bool, string, []byte, every Go integer kind,
// float32, float64, []any and map[string]any. Each decodes back to the same
// Go type. Anything else fails with ErrUnsupportedValue.
func EncodeBinary(data map[string]any) ([]byte, error) {
	s, err := encodeStruct(data)
	if err != nil {
		return nil, err
	}

	encoded, err := proto.MarshalOptions{Deterministic: true}.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
	}
	return encoded, nil
}

// DecodeBinary is the inverse of EncodeBinary.
func DecodeBinary(data []byte) (map[string]any, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}
	return decodeFields(s.GetFields())
}

func encodeStruct(m map[string]any) (*structpb.Struct, error) {
	fields := make(map[string]*structpb.Value, len(m))
	for k, v := range m {
		ev, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q", err, k)
		}
		fields[k] = ev
	}
	return &structpb.Struct{Fields: fields}, nil
}

func encodeValue(v any) (*structpb.Value, error) {
	switch v := v.(type) {
	case nil:
		return structpb.NewNullValue(), nil
	case bool:
		return structpb.NewBoolValue(v), nil
	case string:
		// structpb validates UTF-8 on marshal; check here for a keyed error.
		if _, err := structpb.NewValue(v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
		}
		return structpb.NewStringValue(v), nil
	case float64:
		return structpb.NewNumberValue(v), nil
	case float32:
		return tagged(kindFloat32, structpb.NewNumberValue(float64(v))), nil
	case []byte:
		return tagged(kindBytes, structpb.NewStringValue(base64.StdEncoding.EncodeToString(v))), nil
	case int:
		return taggedInt(kindInt, int64(v)), nil
	case int8:
		return taggedInt(kindInt8, int64(v)), nil
	case int16:
		return taggedInt(kindInt16, int64(v)), nil
	case int32:
		return taggedInt(kindInt32, int64(v)), nil
	case int64:
		return taggedInt(kindInt64, v), nil
	case uint:
		return taggedUint(kindUint, uint64(v)), nil
	case uint8:
		return taggedUint(kindUint8, uint64(v)), nil
	case uint16:
		return taggedUint(kindUint16, uint64(v)), nil
	case uint32:
		return taggedUint(kindUint32, uint64(v)), nil
	case uint64:
		return taggedUint(kindUint64, v), nil
	case []any:
		values := make([]*structpb.Value, len(v))
		for i, item := range v {
			ev, err := encodeValue(item)
			if err != nil {
				return nil, fmt.Errorf("%w: index %d", err, i)
			}
			values[i] = ev
		}
		return structpb.NewListValue(&structpb.ListValue{Values: values}), nil
	case map[string]any:
		s, err := encodeStruct(v)
		if err != nil {
			return nil, err
		}
		if _, reserved := v[tagKey]; reserved {
			return tagged(kindMap, structpb.NewStructValue(s)), nil
		}
		return structpb.NewStructValue(s), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

func tagged(kind string, payload *structpb.Value) *structpb.Value {
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		tagKey:   structpb.NewStringValue(kind),
		tagValue: payload,
	}})
}

func taggedInt(kind string, n int64) *structpb.Value {
	return tagged(kind, structpb.NewStringValue(strconv.FormatInt(n, 10)))
}

func taggedUint(kind string, n uint64) *structpb.Value {
	return tagged(kind, structpb.NewStringValue(strconv.FormatUint(n, 10)))
}

func decodeFields(fields map[string]*structpb.Value) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		dv, err := decodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q", err, k)
		}
		out[k] = dv
	}
	return out, nil
}

func decodeValue(v *structpb.Value) (any, error) {
	switch k := v.GetKind().(type) {
	case nil, *structpb.Value_NullValue:
		return nil, nil
	case *structpb.Value_BoolValue:
		return k.BoolValue, nil
	case *structpb.Value_StringValue:
		return k.StringValue, nil
	case *structpb.Value_NumberValue:
		return k.NumberValue, nil
	case *structpb.Value_ListValue:
		items := k.ListValue.GetValues()
		out := make([]any, len(items))
		for i, item := range items {
			dv, err := decodeValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = dv
		}
		return out, nil
	case *structpb.Value_StructValue:
		fields := k.StructValue.GetFields()
		if _, ok := fields[tagKey]; ok {
			return decodeTagged(fields)
		}
		return decodeFields(fields)
	default:
		return nil, fmt.Errorf("%w: unknown value kind %T", ErrCorruptStore, k)
	}
}

func decodeTagged(fields map[string]*structpb.Value) (any, error) {
	kind := fields[tagKey].GetStringValue()
	payload := fields[tagValue]
	if len(fields) != 2 || payload == nil {
		return nil, fmt.Errorf("%w: malformed %s value", ErrCorruptStore, kind)
	}

	switch kind {
	case kindMap:
		s := payload.GetStructValue()
		if s == nil {
			return nil, fmt.Errorf("%w: malformed map value", ErrCorruptStore)
		}
		return decodeFields(s.GetFields())
	case kindBytes:
		b, err := base64.StdEncoding.DecodeString(payload.GetStringValue())
		if err != nil {
			return nil, fmt.Errorf("%w: bytes: %v", ErrCorruptStore, err)
		}
		return b, nil
	case kindFloat32:
		n := payload.GetNumberValue()
		if n != float64(float32(n)) && !math.IsNaN(n) {
			return nil, fmt.Errorf("%w: float32 out of range", ErrCorruptStore)
		}
		return float32(n), nil
	}

	text := payload.GetStringValue()
	switch kind {
	case kindInt, kindInt8, kindInt16, kindInt32, kindInt64:
		n, err := strconv.ParseInt(text, 10, bitSizes[kind])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorruptStore, kind, err)
		}
		switch kind {
		case kindInt:
			return int(n), nil
		case kindInt8:
			return int8(n), nil
		case kindInt16:
			return int16(n), nil
		case kindInt32:
			return int32(n), nil
		default:
			return n, nil
		}
	case kindUint, kindUint8, kindUint16, kindUint32, kindUint64:
		n, err := strconv.ParseUint(text, 10, bitSizes[kind])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorruptStore, kind, err)
		}
		switch kind {
		case kindUint:
			return uint(n), nil
		case kindUint8:
			return uint8(n), nil
		case kindUint16:
			return uint16(n), nil
		case kindUint32:
			return uint32(n), nil
		default:
			return n, nil
		}
	default:
		return nil, fmt.Errorf("%w: unknown value kind %q", ErrCorruptStore, kind)
	}
}
