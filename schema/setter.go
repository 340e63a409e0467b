package schema

import (
	"database/sql"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/Konsultn-Engineering/silence/dberr"
)

// Assign stores a driver value into dst, converting between the shapes
// drivers commonly return and the declared field type. A nil src zeroes dst.
func Assign(dst reflect.Value, src any) error {
	if !dst.CanSet() {
		return dberr.New(dberr.KindReflectionAccess, "assign", "%s is not settable", dst.Type())
	}

	if src == nil {
		dst.SetZero()
		return nil
	}

	if dst.CanAddr() {
		if scanner, ok := dst.Addr().Interface().(sql.Scanner); ok {
			if err := scanner.Scan(src); err != nil {
				return dberr.Wrap(dberr.KindTypeMismatch, "assign", err, "scan %T into %s", src, dst.Type())
			}
			return nil
		}
	}

	sv := reflect.ValueOf(src)
	for sv.Kind() == reflect.Ptr {
		if sv.IsNil() {
			dst.SetZero()
			return nil
		}
		if sv.Type().AssignableTo(dst.Type()) {
			dst.Set(sv)
			return nil
		}
		sv = sv.Elem()
	}

	if dst.Kind() == reflect.Ptr {
		elem := reflect.New(dst.Type().Elem())
		if err := Assign(elem.Elem(), sv.Interface()); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}

	if sv.Type().AssignableTo(dst.Type()) {
		dst.Set(sv)
		return nil
	}

	return convertInto(dst, sv)
}

func convertInto(dst, sv reflect.Value) error {
	mismatch := func() error {
		return dberr.New(dberr.KindTypeMismatch, "assign", "cannot assign %s to %s", sv.Type(), dst.Type())
	}

	// Text arriving as bytes or strings.
	text, isText := textOf(sv)

	switch {
	case dst.Kind() == reflect.String:
		switch {
		case isText:
			dst.SetString(text)
		case isInt(sv.Kind()):
			dst.SetString(strconv.FormatInt(sv.Int(), 10))
		case isUint(sv.Kind()):
			dst.SetString(strconv.FormatUint(sv.Uint(), 10))
		case isFloat(sv.Kind()):
			dst.SetString(strconv.FormatFloat(sv.Float(), 'f', -1, 64))
		case sv.Kind() == reflect.Bool:
			dst.SetString(strconv.FormatBool(sv.Bool()))
		default:
			if s, ok := sv.Interface().(fmt.Stringer); ok {
				dst.SetString(s.String())
				return nil
			}
			return mismatch()
		}
		return nil

	case dst.Kind() == reflect.Slice && dst.Type().Elem().Kind() == reflect.Uint8 && isText:
		dst.SetBytes([]byte(text))
		return nil

	case dst.Kind() == reflect.Bool:
		switch {
		case isText:
			b, err := strconv.ParseBool(text)
			if err != nil {
				return dberr.Wrap(dberr.KindTypeMismatch, "assign", err, "parse bool")
			}
			dst.SetBool(b)
		case isInt(sv.Kind()):
			dst.SetBool(sv.Int() != 0)
		case isUint(sv.Kind()):
			dst.SetBool(sv.Uint() != 0)
		default:
			return mismatch()
		}
		return nil

	case isInt(dst.Kind()):
		var n int64
		switch {
		case isInt(sv.Kind()):
			n = sv.Int()
		case isUint(sv.Kind()):
			if sv.Uint() > math.MaxInt64 {
				return dberr.New(dberr.KindTypeMismatch, "assign", "%d overflows %s", sv.Uint(), dst.Type())
			}
			n = int64(sv.Uint())
		case isFloat(sv.Kind()):
			if !wholeIn(sv.Float(), math.MinInt64, 1<<63) {
				return dberr.New(dberr.KindTypeMismatch, "assign", "%v is not a whole %s", sv.Float(), dst.Type())
			}
			n = int64(sv.Float())
		case sv.Kind() == reflect.Bool:
			if sv.Bool() {
				n = 1
			}
		case isText:
			v, err := strconv.ParseInt(text, 10, 64)
			if err != nil {
				return dberr.Wrap(dberr.KindTypeMismatch, "assign", err, "parse integer")
			}
			n = v
		default:
			return mismatch()
		}
		if dst.OverflowInt(n) {
			return dberr.New(dberr.KindTypeMismatch, "assign", "%d overflows %s", n, dst.Type())
		}
		dst.SetInt(n)
		return nil

	case isUint(dst.Kind()):
		var n uint64
		switch {
		case isInt(sv.Kind()):
			if sv.Int() < 0 {
				return dberr.New(dberr.KindTypeMismatch, "assign", "%d is negative for %s", sv.Int(), dst.Type())
			}
			n = uint64(sv.Int())
		case isUint(sv.Kind()):
			n = sv.Uint()
		case isFloat(sv.Kind()):
			if !wholeIn(sv.Float(), 0, 1<<64) {
				return dberr.New(dberr.KindTypeMismatch, "assign", "%v is not a whole %s", sv.Float(), dst.Type())
			}
			n = uint64(sv.Float())
		case isText:
			v, err := strconv.ParseUint(text, 10, 64)
			if err != nil {
				return dberr.Wrap(dberr.KindTypeMismatch, "assign", err, "parse unsigned integer")
			}
			n = v
		default:
			return mismatch()
		}
		if dst.OverflowUint(n) {
			return dberr.New(dberr.KindTypeMismatch, "assign", "%d overflows %s", n, dst.Type())
		}
		dst.SetUint(n)
		return nil

	case isFloat(dst.Kind()):
		switch {
		case isInt(sv.Kind()):
			dst.SetFloat(float64(sv.Int()))
		case isUint(sv.Kind()):
			dst.SetFloat(float64(sv.Uint()))
		case isFloat(sv.Kind()):
			dst.SetFloat(sv.Float())
		case isText:
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return dberr.Wrap(dberr.KindTypeMismatch, "assign", err, "parse float")
			}
			dst.SetFloat(v)
		default:
			return mismatch()
		}
		return nil

	case dst.Type() == timeType && isText:
		ts, err := parseTime(text)
		if err != nil {
			return dberr.Wrap(dberr.KindTypeMismatch, "assign", err, "parse time")
		}
		dst.Set(reflect.ValueOf(ts))
		return nil
	}

	if sv.Kind() == dst.Kind() && sv.Type().ConvertibleTo(dst.Type()) {
		dst.Set(sv.Convert(dst.Type()))
		return nil
	}
	return mismatch()
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func textOf(v reflect.Value) (string, bool) {
	switch {
	case v.Kind() == reflect.String:
		return v.String(), true
	case v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8:
		return string(v.Bytes()), true
	}
	return "", false
}

// wholeIn reports whether f is an integer in [lo, hi). NaN and the
// infinities never are.
func wholeIn(f, lo, hi float64) bool {
	return f == math.Trunc(f) && f >= lo && f < hi
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}
