// Package bencode implements the canonical bencoding used for anchor hashing.
//
// The output is a wire contract: dictionaries are emitted with keys sorted by raw
// byte value, strings are length-prefixed, integers are written in plain decimal.
// Booleans are written as the integers 1 and 0. Independent clients hashing the
// same event must produce the same bytes, so the encoder refuses values the
// format cannot represent exactly (floats, nulls) instead of approximating them.
package bencode

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

const (
	dictMarker = 'd'
	listMarker = 'l'
	intMarker  = 'i'
	terminator = 'e'
	separator  = ':'
)

var (
	// ErrFloat is returned when a floating-point value is found anywhere in the input.
	ErrFloat = errors.New("bencode: floating-point values cannot be encoded")
	// ErrUnsupported is returned for values with no bencode representation.
	ErrUnsupported = errors.New("bencode: unsupported value")
)

// ValueError reports the location of a value that could not be encoded.
type ValueError struct {
	Path string // dotted path from the root, e.g. "event_attributes.amount"
	Kind string
	Err  error
}

func (e *ValueError) Error() string {
	path := e.Path
	if path == "" {
		path = "<root>"
	}
	return fmt.Sprintf("%v: %s at %s", e.Err, e.Kind, path)
}

func (e *ValueError) Unwrap() error { return e.Err }

// Marshal returns the canonical encoding of v.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v, ""); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encode(buf *bytes.Buffer, v any, path string) error {
	switch val := v.(type) {
	case string:
		writeString(buf, val)
	case []byte:
		writeBytes(buf, val)
	case int:
		writeInt(buf, strconv.FormatInt(int64(val), 10))
	case int8:
		writeInt(buf, strconv.FormatInt(int64(val), 10))
	case int16:
		writeInt(buf, strconv.FormatInt(int64(val), 10))
	case int32:
		writeInt(buf, strconv.FormatInt(int64(val), 10))
	case int64:
		writeInt(buf, strconv.FormatInt(val, 10))
	case uint:
		writeInt(buf, strconv.FormatUint(uint64(val), 10))
	case uint8:
		writeInt(buf, strconv.FormatUint(uint64(val), 10))
	case uint16:
		writeInt(buf, strconv.FormatUint(uint64(val), 10))
	case uint32:
		writeInt(buf, strconv.FormatUint(uint64(val), 10))
	case uint64:
		writeInt(buf, strconv.FormatUint(val, 10))
	case *big.Int:
		if val == nil {
			return &ValueError{Path: path, Kind: "nil integer", Err: ErrUnsupported}
		}
		writeInt(buf, val.String())
	case json.Number:
		digits, err := integerLiteral(val)
		if err != nil {
			return &ValueError{Path: path, Kind: fmt.Sprintf("number %s", val), Err: err}
		}
		writeInt(buf, digits)
	case float32, float64:
		return &ValueError{Path: path, Kind: fmt.Sprintf("float %v", val), Err: ErrFloat}
	case map[string]any:
		return encodeDict(buf, val, path)
	case []any:
		buf.WriteByte(listMarker)
		for i, item := range val {
			if err := encode(buf, item, indexPath(path, i)); err != nil {
				return err
			}
		}
		buf.WriteByte(terminator)
	case nil:
		return &ValueError{Path: path, Kind: "null", Err: ErrUnsupported}
	case bool:
		writeBool(buf, val)
	default:
		return encodeReflect(buf, reflect.ValueOf(v), path)
	}
	return nil
}

// encodeReflect handles named map, slice and string types (RawEvent and friends)
// by converting them to their underlying kinds.
func encodeReflect(buf *bytes.Buffer, rv reflect.Value, path string) error {
	switch rv.Kind() {
	case reflect.String:
		writeString(buf, rv.String())
		return nil
	case reflect.Bool:
		writeBool(buf, rv.Bool())
		return nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return &ValueError{Path: path, Kind: rv.Type().String(), Err: ErrUnsupported}
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return encodeDict(buf, m, path)
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 && rv.Kind() == reflect.Slice {
			writeBytes(buf, rv.Bytes())
			return nil
		}
		buf.WriteByte(listMarker)
		for i := 0; i < rv.Len(); i++ {
			if err := encode(buf, rv.Index(i).Interface(), indexPath(path, i)); err != nil {
				return err
			}
		}
		buf.WriteByte(terminator)
		return nil
	case reflect.Float32, reflect.Float64:
		return &ValueError{Path: path, Kind: fmt.Sprintf("float %v", rv.Float()), Err: ErrFloat}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		writeInt(buf, strconv.FormatInt(rv.Int(), 10))
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		writeInt(buf, strconv.FormatUint(rv.Uint(), 10))
		return nil
	}
	return &ValueError{Path: path, Kind: fmt.Sprintf("%T", rv.Interface()), Err: ErrUnsupported}
}

func encodeDict(buf *bytes.Buffer, m map[string]any, path string) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// sort.Strings compares bytes, which is the order the format requires.
	sort.Strings(keys)

	buf.WriteByte(dictMarker)
	for _, k := range keys {
		writeString(buf, k)
		if err := encode(buf, m[k], keyPath(path, k)); err != nil {
			return err
		}
	}
	buf.WriteByte(terminator)
	return nil
}

func writeString(buf *bytes.Buffer, s string) {
	buf.WriteString(strconv.Itoa(len(s)))
	buf.WriteByte(separator)
	buf.WriteString(s)
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	buf.WriteString(strconv.Itoa(len(b)))
	buf.WriteByte(separator)
	buf.Write(b)
}

func writeInt(buf *bytes.Buffer, digits string) {
	buf.WriteByte(intMarker)
	buf.WriteString(digits)
	buf.WriteByte(terminator)
}

func writeBool(buf *bytes.Buffer, b bool) {
	if b {
		writeInt(buf, "1")
		return
	}
	writeInt(buf, "0")
}

// integerLiteral normalizes a JSON number to decimal digits. Fractions and
// exponents make the literal a float, even when the value is integral ("1.0").
func integerLiteral(n json.Number) (string, error) {
	s := string(n)
	if strings.ContainsAny(s, ".eE") {
		return "", ErrFloat
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return "", ErrUnsupported
	}
	return b.String(), nil
}

func keyPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func indexPath(parent string, i int) string {
	return parent + "[" + strconv.Itoa(i) + "]"
}
