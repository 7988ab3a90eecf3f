// Package meta implements the generic object/array/variant literal used for
// file headers such as sprite tables and stage objects,
// with two-way FromMeta/ToMeta conversions driven by a `meta:"name,
// optional"` struct tag, in the reflective struct-tag-codec idiom
// Consensys-go-corset/pkg/binfile/json.go uses for binfile header
// (de)serialization, adapted from JSON tags to this bespoke literal
// format since meta objects must preserve field order.
package meta

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Kind enumerates the shapes a Value can take: three scalar kinds plus
// array, object and variant.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindString
	KindArray
	KindObject
	KindVariant
)

// Value is the generic meta literal: a scalar, an ordered array, an
// ordered object (field name -> Value, insertion order preserved because
// Touhou header tables are positionally meaningful), or a tagged variant
// (used for e.g. quad kind 0 vs kind 1 in the STD format).
type Value struct {
	kind    Kind
	i       int64
	f       float64
	s       string
	arr     []Value
	objKeys []string
	objVals map[string]Value
	// Variant fields.
	tag  string
	elem *Value
}

func Int(v int64) Value    { return Value{kind: KindInt, i: v} }
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }
func Str(v string) Value   { return Value{kind: KindString, s: v} }
func Array(vs []Value) Value {
	return Value{kind: KindArray, arr: vs}
}
func Variant(tag string, v Value) Value {
	return Value{kind: KindVariant, tag: tag, elem: &v}
}

// NewObject builds an ordered object value from keys (in field order) and
// a parallel slice of values.
func NewObject(keys []string, vals []Value) Value {
	m := make(map[string]Value, len(keys))
	for i, k := range keys {
		m[k] = vals[i]
	}
	return Value{kind: KindObject, objKeys: append([]string(nil), keys...), objVals: m}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) Int() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}
func (v Value) Float() (float64, bool) {
	if v.kind != KindFloat {
		return 0, false
	}
	return v.f, true
}
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	default:
		return fmt.Sprintf("<%v>", v.kind)
	}
}
func (v Value) Array() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.arr, true
}
func (v Value) Field(name string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	val, ok := v.objVals[name]
	return val, ok
}
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	return v.objKeys
}
func (v Value) VariantTag() (string, Value, bool) {
	if v.kind != KindVariant {
		return "", Value{}, false
	}
	return v.tag, *v.elem, true
}

// fieldTag is the parsed form of a `meta:"name,optional"` struct tag.
type fieldTag struct {
	name     string
	optional bool
}

func parseTag(raw string) fieldTag {
	parts := strings.Split(raw, ",")
	t := fieldTag{name: parts[0]}
	for _, p := range parts[1:] {
		if p == "optional" {
			t.optional = true
		}
	}
	return t
}

// ToMeta converts a Go struct (or pointer to one) into an ordered meta
// Object, walking exported fields in declaration order and reading their
// `meta:"..."` tags. Fields without a tag use their Go field name.
func ToMeta(v any) (Value, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return scalarToMeta(rv)
	}
	rt := rv.Type()
	var keys []string
	var vals []Value
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := parseTag(field.Tag.Get("meta"))
		name := tag.name
		if name == "" {
			name = field.Name
		}
		fv, err := ToMeta(rv.Field(i).Interface())
		if err != nil {
			return Value{}, fmt.Errorf("meta: field %s: %w", name, err)
		}
		keys = append(keys, name)
		vals = append(vals, fv)
	}
	return NewObject(keys, vals), nil
}

func scalarToMeta(rv reflect.Value) (Value, error) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Int(int64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.String:
		return Str(rv.String()), nil
	case reflect.Slice, reflect.Array:
		vs := make([]Value, rv.Len())
		for i := range vs {
			v, err := ToMeta(rv.Index(i).Interface())
			if err != nil {
				return Value{}, err
			}
			vs[i] = v
		}
		return Array(vs), nil
	default:
		return Value{}, fmt.Errorf("meta: unsupported scalar kind %s", rv.Kind())
	}
}

// FromMeta populates the struct pointed to by dst from an Object value,
// the inverse of ToMeta. Missing fields are an error unless their tag
// marks them optional, in which case they are left at their Go zero value.
func FromMeta(v Value, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("meta: FromMeta destination must be a non-nil pointer")
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return scalarFromMeta(v, rv)
	}
	if v.kind != KindObject {
		return fmt.Errorf("meta: expected object, got kind %v", v.kind)
	}
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := parseTag(field.Tag.Get("meta"))
		name := tag.name
		if name == "" {
			name = field.Name
		}
		fv, ok := v.objVals[name]
		if !ok {
			if tag.optional {
				continue
			}
			return fmt.Errorf("meta: missing required field %q", name)
		}
		if err := FromMeta(fv, rv.Field(i).Addr().Interface()); err != nil {
			return fmt.Errorf("meta: field %s: %w", name, err)
		}
	}
	return nil
}

func scalarFromMeta(v Value, rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, ok := v.Int()
		if !ok {
			return fmt.Errorf("meta: expected int, got kind %v", v.kind)
		}
		rv.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		i, ok := v.Int()
		if !ok {
			return fmt.Errorf("meta: expected int, got kind %v", v.kind)
		}
		rv.SetUint(uint64(i))
	case reflect.Float32, reflect.Float64:
		f, ok := v.Float()
		if ok {
			rv.SetFloat(f)
			return nil
		}
		i, ok := v.Int()
		if !ok {
			return fmt.Errorf("meta: expected float, got kind %v", v.kind)
		}
		rv.SetFloat(float64(i))
	case reflect.String:
		if v.kind != KindString {
			return fmt.Errorf("meta: expected string, got kind %v", v.kind)
		}
		rv.SetString(v.s)
	case reflect.Slice:
		arr, ok := v.Array()
		if !ok {
			return fmt.Errorf("meta: expected array, got kind %v", v.kind)
		}
		slice := reflect.MakeSlice(rv.Type(), len(arr), len(arr))
		for i, elem := range arr {
			if err := FromMeta(elem, slice.Index(i).Addr().Interface()); err != nil {
				return err
			}
		}
		rv.Set(slice)
	default:
		return fmt.Errorf("meta: unsupported destination kind %s", rv.Kind())
	}
	return nil
}
