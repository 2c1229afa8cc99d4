package property

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Kind identifies the type held by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindInt
	KindBool
	KindBlob
	KindReference
)

// String returns the kind name.
func (k Kind) String() string {
	names := []string{"invalid", "string", "int", "bool", "blob", "reference"}
	if int(k) < len(names) {
		return names[k]
	}
	return "invalid"
}

// ParseKind returns the Kind for a name produced by Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "string":
		return KindString, nil
	case "int":
		return KindInt, nil
	case "bool":
		return KindBool, nil
	case "blob":
		return KindBlob, nil
	case "reference":
		return KindReference, nil
	}
	return KindInvalid, fmt.Errorf("%w: unknown kind %q", ErrInvalidValue, s)
}

// ErrInvalidValue is returned for values that cannot be stored or parsed.
var ErrInvalidValue = errors.New("invalid property value")

// Value is an immutable tagged union.
type Value struct {
	kind Kind
	str  string
	num  int64
	blob []byte
}

// String creates a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int creates an integer value.
func Int(i int64) Value { return Value{kind: KindInt, num: i} }

// Bool creates a bool value.
func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.num = 1
	}
	return v
}

// Blob creates a blob value. The bytes are copied.
func Blob(b []byte) Value {
	return Value{kind: KindBlob, blob: bytes.Clone(b)}
}

// Reference creates a reference to an observer context.
func Reference(contextID int) Value {
	return Value{kind: KindReference, num: int64(contextID)}
}

// Kind returns the kind of the value.
func (v Value) Kind() Kind { return v.kind }

// IsValid returns true if the value holds something.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// AsString returns the string and true if v is a string.
func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

// AsInt returns the integer and true if v is an integer.
func (v Value) AsInt() (int64, bool) {
	return v.num, v.kind == KindInt
}

// AsBool returns the bool and true if v is a bool.
func (v Value) AsBool() (bool, bool) {
	return v.num != 0, v.kind == KindBool
}

// AsBlob returns a copy of the blob and true if v is a blob.
func (v Value) AsBlob() ([]byte, bool) {
	if v.kind != KindBlob {
		return nil, false
	}
	return bytes.Clone(v.blob), true
}

// AsReference returns the referenced context ID and true if v is a reference.
func (v Value) AsReference() (int, bool) {
	return int(v.num), v.kind == KindReference
}

// Equal reports whether two values have the same kind and content.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == other.str
	case KindBlob:
		return bytes.Equal(v.blob, other.blob)
	default:
		return v.num == other.num
	}
}

// Text returns the textual form used by the tree codec.
// Blobs are base64 encoded.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt, KindReference:
		return strconv.FormatInt(v.num, 10)
	case KindBool:
		return strconv.FormatBool(v.num != 0)
	case KindBlob:
		return base64.StdEncoding.EncodeToString(v.blob)
	}
	return ""
}

// ParseText is the inverse of Text.
func ParseText(kind Kind, text string) (Value, error) {
	switch kind {
	case KindString:
		return String(text), nil
	case KindInt:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return Int(n), nil
	case KindReference:
		n, err := strconv.Atoi(text)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return Reference(n), nil
	case KindBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return Bool(b), nil
	case KindBlob:
		b, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return Value{kind: KindBlob, blob: b}, nil
	}
	return Value{}, fmt.Errorf("%w: kind %s", ErrInvalidValue, kind)
}

// Raw returns the value in the scalar form used by the binary codec:
// string, int64, bool or []byte.
func (v Value) Raw() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt, KindReference:
		return v.num
	case KindBool:
		return v.num != 0
	case KindBlob:
		return bytes.Clone(v.blob)
	}
	return nil
}

// FromRaw rebuilds a value from its kind and Raw form. Decoders may hand
// integers back as any signed or unsigned type.
func FromRaw(kind Kind, raw any) (Value, error) {
	switch kind {
	case KindString:
		if s, ok := raw.(string); ok {
			return String(s), nil
		}
	case KindInt, KindReference:
		n, ok := toInt64(raw)
		if !ok {
			break
		}
		if kind == KindReference {
			if n < math.MinInt || n > math.MaxInt {
				return Value{}, fmt.Errorf("%w: reference %d out of range", ErrInvalidValue, n)
			}
			return Reference(int(n)), nil
		}
		return Int(n), nil
	case KindBool:
		if b, ok := raw.(bool); ok {
			return Bool(b), nil
		}
	case KindBlob:
		if b, ok := raw.([]byte); ok {
			return Blob(b), nil
		}
	}
	return Value{}, fmt.Errorf("%w: %T for kind %s", ErrInvalidValue, raw, kind)
}

// String implements fmt.Stringer for display.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return strconv.Quote(v.str)
	case KindBlob:
		return fmt.Sprintf("<%d bytes>", len(v.blob))
	case KindReference:
		return fmt.Sprintf("@%d", v.num)
	case KindInvalid:
		return "<invalid>"
	}
	return v.Text()
}

// toInt64 widens any integer type. Unsigned values above MaxInt64 fail.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}
