package mtp

import (
	"encoding/binary"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"
)

// The Decoder interface is for types that need special decoding
// support.
type Decoder interface {
	Decode(r io.Reader) error
}

type Encoder interface {
	Encode(w io.Writer) error
}

func decodeStr(r io.Reader) (string, error) {
	var szSlice [1]byte
	if _, err := io.ReadFull(r, szSlice[:]); err != nil {
		return "", err
	}
	sz := int(szSlice[0])
	if sz == 0 {
		return "", nil
	}
	data := make([]byte, 2*sz)
	if _, err := io.ReadFull(r, data); err != nil {
		return "", fmt.Errorf("underflow: %w", err)
	}
	var sb StringBuffer
	if err := sb.Decode(sz, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func encodeStr(w io.Writer, s string) error {
	var scratch [2*MaxStringLength + 1]byte
	_, err := w.Write(NewStringBuffer(s).Append(scratch[:0]))
	return err
}

func kindSize(k reflect.Kind) int {
	switch k {
	case reflect.Int8, reflect.Uint8:
		return 1
	case reflect.Int16, reflect.Uint16:
		return 2
	case reflect.Int32, reflect.Uint32:
		return 4
	case reflect.Int64, reflect.Uint64:
		return 8
	default:
		panic(fmt.Sprintf("unknown kind %v", k))
	}
}

var nullValue reflect.Value

func decodeArray(r io.Reader, t reflect.Type) (reflect.Value, error) {
	var sz uint32
	if err := binary.Read(r, byteOrder, &sz); err != nil {
		return nullValue, err
	}

	kind := t.Elem().Kind()
	ksz := kindSize(kind)
	data := make([]byte, int(sz)*ksz)
	if _, err := io.ReadFull(r, data); err != nil {
		return nullValue, fmt.Errorf("array of %d: %w", sz, err)
	}

	slice := reflect.MakeSlice(t, int(sz), int(sz))
	for i := 0; i < int(sz); i++ {
		from := data[i*ksz:]
		var val uint64
		switch ksz {
		case 1:
			val = uint64(from[0])
		case 2:
			val = uint64(byteOrder.Uint16(from))
		case 4:
			val = uint64(byteOrder.Uint32(from))
		case 8:
			val = byteOrder.Uint64(from)
		}
		elt := slice.Index(i)
		switch kind {
		case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			elt.SetInt(signExtend(val, ksz))
		default:
			elt.SetUint(val)
		}
	}
	return slice, nil
}

func signExtend(v uint64, size int) int64 {
	shift := 64 - 8*uint(size)
	return int64(v<<shift) >> shift
}

func encodeArray(w io.Writer, val reflect.Value) error {
	sz := uint32(val.Len())
	if err := binary.Write(w, byteOrder, &sz); err != nil {
		return err
	}

	kind := val.Type().Elem().Kind()
	ksz := kindSize(kind)
	data := make([]byte, int(sz)*ksz)
	for i := 0; i < int(sz); i++ {
		elt := val.Index(i)
		to := data[i*ksz:]

		var bits uint64
		switch kind {
		case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			bits = uint64(elt.Int())
		default:
			bits = elt.Uint()
		}
		switch ksz {
		case 1:
			to[0] = byte(bits)
		case 2:
			byteOrder.PutUint16(to, uint16(bits))
		case 4:
			byteOrder.PutUint32(to, uint32(bits))
		case 8:
			byteOrder.PutUint64(to, bits)
		}
	}
	_, err := w.Write(data)
	return err
}

var timeType = reflect.TypeOf(time.Time{})

// MTP datetime strings. Time zones are not sent; times are local.
const timeFormat = "20060102T150405"
const timeFormatNumTZ = "20060102T150405-0700"

// FormatTime renders t as an MTP datetime string. The zero time is the
// empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeFormat)
}

// ParseTime accepts the datetime strings initiators send, including the
// ones with a trailing tenth of a second, "Z" or a numeric zone.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	// Samsung has trailing dots.
	s = strings.TrimRight(s, ".")

	// Jolla Sailfish has trailing "Z".
	s = strings.TrimRight(s, "Z")

	// Windows may send tenths of seconds.
	if i := strings.IndexByte(s, '.'); i == len(timeFormat) {
		s = s[:i] + s[i+2:]
	}

	t, err := time.ParseInLocation(timeFormat, s, time.Local)
	if err != nil {
		// Nokia lumia has numTZ
		t, err = time.Parse(timeFormatNumTZ, s)
		if err != nil {
			return time.Time{}, err
		}
	}
	return t, nil
}

func encodeTime(w io.Writer, f reflect.Value) error {
	return encodeStr(w, FormatTime(f.Interface().(time.Time)))
}

func decodeTime(r io.Reader, f reflect.Value) error {
	s, err := decodeStr(r)
	if err != nil {
		return err
	}
	t, err := ParseTime(s)
	if err != nil {
		return err
	}
	f.Set(reflect.ValueOf(t))
	return nil
}

func decodeField(r io.Reader, f reflect.Value) error {
	if !f.CanAddr() {
		return fmt.Errorf("canaddr false")
	}

	if f.Type() == timeType {
		return decodeTime(r, f)
	}

	switch f.Kind() {
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return binary.Read(r, byteOrder, f.Addr().Interface())
	case reflect.String:
		s, err := decodeStr(r)
		if err != nil {
			return err
		}
		f.SetString(s)
	case reflect.Slice:
		sl, err := decodeArray(r, f.Type())
		if err != nil {
			return err
		}
		f.Set(sl)
	default:
		return fmt.Errorf("unimplemented kind %v", f.Kind())
	}
	return nil
}

func encodeField(w io.Writer, f reflect.Value) error {
	if f.Type() == timeType {
		return encodeTime(w, f)
	}

	switch f.Kind() {
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return binary.Write(w, byteOrder, f.Interface())
	case reflect.String:
		return encodeStr(w, f.String())
	case reflect.Slice:
		return encodeArray(w, f)
	default:
		return fmt.Errorf("unimplemented kind %v", f.Kind())
	}
}

// Decode MTP data stream into data structure.
func Decode(r io.Reader, iface interface{}) error {
	decoder, ok := iface.(Decoder)
	if ok {
		return decoder.Decode(r)
	}

	val := reflect.ValueOf(iface)
	if val.Kind() != reflect.Ptr {
		return fmt.Errorf("need ptr argument: %T", iface)
	}
	val = val.Elem()
	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		if err := decodeField(r, val.Field(i)); err != nil {
			return fmt.Errorf("%s.%s: %w", t.Name(), t.Field(i).Name, err)
		}
	}
	return nil
}

// Encode data structure into MTP data stream.
func Encode(w io.Writer, iface interface{}) error {
	encoder, ok := iface.(Encoder)
	if ok {
		return encoder.Encode(w)
	}

	val := reflect.ValueOf(iface)
	if val.Kind() != reflect.Ptr {
		return fmt.Errorf("need ptr argument: %T", iface)
	}
	val = val.Elem()
	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		if err := encodeField(w, val.Field(i)); err != nil {
			return err
		}
	}
	return nil
}
