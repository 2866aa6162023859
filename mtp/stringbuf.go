package mtp

import (
	"fmt"
	"unicode/utf16"
	"unicode/utf8"
)

// MaxStringLength is the longest string in UTF-16 units, terminator
// included, that fits the one byte count.
const MaxStringLength = 255

// StringBuffer converts between Go strings and the counted UTF-16
// strings of the wire format.
type StringBuffer struct {
	units []uint16
}

func NewStringBuffer(s string) *StringBuffer {
	b := &StringBuffer{}
	b.Set(s)
	return b
}

// Set converts s to UTF-16. Conversion stops at a trailing partial
// UTF-8 sequence, and before a character that would exceed
// MaxStringLength-1 units. Invalid bytes become U+FFFD.
func (b *StringBuffer) Set(s string) {
	b.units = b.units[:0]
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if r == utf8.RuneError && size <= 1 && !utf8.FullRuneInString(s) {
			break
		}
		var pair [2]uint16
		enc := pair[:1]
		if r > 0xFFFF {
			r1, r2 := utf16.EncodeRune(r)
			pair[0], pair[1] = uint16(r1), uint16(r2)
			enc = pair[:2]
		} else {
			pair[0] = uint16(r)
		}
		if len(b.units)+len(enc) > MaxStringLength-1 {
			break
		}
		b.units = append(b.units, enc...)
		s = s[size:]
	}
}

// Len is the length in UTF-16 units, without terminator.
func (b *StringBuffer) Len() int {
	return len(b.units)
}

func (b *StringBuffer) String() string {
	return string(utf16.Decode(b.units))
}

// Append adds the wire encoding to dst: the count including the
// terminator, the units and a zero unit. An empty string is a single
// zero byte.
func (b *StringBuffer) Append(dst []byte) []byte {
	if len(b.units) == 0 {
		return append(dst, 0)
	}
	dst = append(dst, byte(len(b.units)+1))
	for _, u := range b.units {
		dst = byteOrder.AppendUint16(dst, u)
	}
	return append(dst, 0, 0)
}

// Decode parses count units starting at data. Everything from the first
// zero unit on is dropped.
func (b *StringBuffer) Decode(count int, data []byte) error {
	if len(data) < 2*count {
		return fmt.Errorf("%w: string of %d units, %d bytes", ErrShortPacket, count, len(data))
	}
	b.units = b.units[:0]
	for i := 0; i < count; i++ {
		u := byteOrder.Uint16(data[2*i:])
		if u == 0 {
			break
		}
		b.units = append(b.units, u)
	}
	return nil
}

func (b *StringBuffer) WriteToPacket(p *DataPacket) {
	var scratch [2*MaxStringLength + 1]byte
	p.PutData(b.Append(scratch[:0]))
}

func (b *StringBuffer) ReadFromPacket(p *DataPacket) error {
	count, err := p.GetUint8()
	if err != nil {
		return err
	}
	data, err := p.take(2 * int(count))
	if err != nil {
		return err
	}
	return b.Decode(int(count), data)
}
