package mtp

import (
	"fmt"
	"io"
)

// Int128 and Uint128 hold 128-bit values as two 64-bit halves; on the
// wire the low half comes first.
type Int128 struct {
	Lo uint64
	Hi int64
}

type Uint128 struct {
	Lo uint64
	Hi uint64
}

// Uint128FromBytes reads 16 little-endian bytes.
func Uint128FromBytes(b [16]byte) Uint128 {
	return Uint128{Lo: byteOrder.Uint64(b[:8]), Hi: byteOrder.Uint64(b[8:])}
}

func (u Uint128) Bytes() [16]byte {
	var b [16]byte
	byteOrder.PutUint64(b[:8], u.Lo)
	byteOrder.PutUint64(b[8:], u.Hi)
	return b
}

// DataPacket is a data container with a cursor over its payload.
// Put calls append; a failed growth is kept and reported by Err, so a
// dataset can be written without checking every call. Get calls read
// at the cursor and return ErrShortPacket past the end.
//
// DataPacket also implements io.Reader and io.Writer over the payload,
// which lets Encode and Decode work on it directly.
type DataPacket struct {
	Packet
	offset int
	err    error
}

func NewDataPacket() *DataPacket {
	return &DataPacket{
		Packet: newPacket(rwBufSize),
		offset: HeaderSize,
	}
}

func (p *DataPacket) Reset() {
	p.Packet.Reset()
	p.offset = HeaderSize
	p.err = nil
}

// Err returns the first growth failure since the last Reset.
func (p *DataPacket) Err() error {
	return p.err
}

// Payload returns the bytes after the header.
func (p *DataPacket) Payload() []byte {
	return p.buffer[HeaderSize:p.size]
}

// Remaining is the number of unread payload bytes.
func (p *DataPacket) Remaining() int {
	return p.size - p.offset
}

// Rewind moves the read cursor back to the start of the payload.
func (p *DataPacket) Rewind() {
	p.offset = HeaderSize
}

func (p *DataPacket) grow(n int) []byte {
	if p.err != nil {
		return nil
	}
	if err := p.allocate(p.size + n); err != nil {
		p.err = err
		return nil
	}
	b := p.buffer[p.size : p.size+n]
	p.size += n
	return b
}

func (p *DataPacket) take(n int) ([]byte, error) {
	if p.offset+n > p.size {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortPacket, n, p.offset, p.size)
	}
	b := p.buffer[p.offset : p.offset+n]
	p.offset += n
	return b, nil
}

// Write appends raw bytes to the payload.
func (p *DataPacket) Write(b []byte) (int, error) {
	dst := p.grow(len(b))
	if dst == nil && len(b) > 0 {
		return 0, p.err
	}
	return copy(dst, b), nil
}

// Read consumes raw bytes from the payload.
func (p *DataPacket) Read(b []byte) (int, error) {
	if p.offset >= p.size {
		if len(b) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(b, p.buffer[p.offset:p.size])
	p.offset += n
	return n, nil
}

// PutData appends raw bytes.
func (p *DataPacket) PutData(b []byte) {
	p.Write(b)
}

func (p *DataPacket) PutInt8(v int8) {
	p.PutUint8(uint8(v))
}

func (p *DataPacket) PutUint8(v uint8) {
	if b := p.grow(1); b != nil {
		b[0] = v
	}
}

func (p *DataPacket) PutInt16(v int16) {
	p.PutUint16(uint16(v))
}

func (p *DataPacket) PutUint16(v uint16) {
	if b := p.grow(2); b != nil {
		byteOrder.PutUint16(b, v)
	}
}

func (p *DataPacket) PutInt32(v int32) {
	p.PutUint32(uint32(v))
}

func (p *DataPacket) PutUint32(v uint32) {
	if b := p.grow(4); b != nil {
		byteOrder.PutUint32(b, v)
	}
}

func (p *DataPacket) PutInt64(v int64) {
	p.PutUint64(uint64(v))
}

func (p *DataPacket) PutUint64(v uint64) {
	if b := p.grow(8); b != nil {
		byteOrder.PutUint64(b, v)
	}
}

func (p *DataPacket) PutInt128(v Int128) {
	p.PutUint64(v.Lo)
	p.PutInt64(v.Hi)
}

func (p *DataPacket) PutUint128(v Uint128) {
	p.PutUint64(v.Lo)
	p.PutUint64(v.Hi)
}

func (p *DataPacket) GetInt8() (int8, error) {
	v, err := p.GetUint8()
	return int8(v), err
}

func (p *DataPacket) GetUint8() (uint8, error) {
	b, err := p.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (p *DataPacket) GetInt16() (int16, error) {
	v, err := p.GetUint16()
	return int16(v), err
}

func (p *DataPacket) GetUint16() (uint16, error) {
	b, err := p.take(2)
	if err != nil {
		return 0, err
	}
	return byteOrder.Uint16(b), nil
}

func (p *DataPacket) GetInt32() (int32, error) {
	v, err := p.GetUint32()
	return int32(v), err
}

func (p *DataPacket) GetUint32() (uint32, error) {
	b, err := p.take(4)
	if err != nil {
		return 0, err
	}
	return byteOrder.Uint32(b), nil
}

func (p *DataPacket) GetInt64() (int64, error) {
	v, err := p.GetUint64()
	return int64(v), err
}

func (p *DataPacket) GetUint64() (uint64, error) {
	b, err := p.take(8)
	if err != nil {
		return 0, err
	}
	return byteOrder.Uint64(b), nil
}

func (p *DataPacket) GetInt128() (Int128, error) {
	b, err := p.take(16)
	if err != nil {
		return Int128{}, err
	}
	return Int128{Lo: byteOrder.Uint64(b), Hi: int64(byteOrder.Uint64(b[8:]))}, nil
}

func (p *DataPacket) GetUint128() (Uint128, error) {
	b, err := p.take(16)
	if err != nil {
		return Uint128{}, err
	}
	return Uint128{Lo: byteOrder.Uint64(b), Hi: byteOrder.Uint64(b[8:])}, nil
}

// Arrays carry a u32 element count.

func putArray[T any](p *DataPacket, vals []T, put func(T)) {
	p.PutUint32(uint32(len(vals)))
	for _, v := range vals {
		put(v)
	}
}

func getArray[T any](p *DataPacket, width int, get func() (T, error)) ([]T, error) {
	n, err := p.GetUint32()
	if err != nil {
		return nil, err
	}
	if int64(n)*int64(width) > int64(p.Remaining()) {
		return nil, fmt.Errorf("%w: array of %d elements, %d bytes left", ErrShortPacket, n, p.Remaining())
	}
	r := make([]T, 0, n)
	for i := uint32(0); i < n; i++ {
		v, err := get()
		if err != nil {
			return nil, err
		}
		r = append(r, v)
	}
	return r, nil
}

func (p *DataPacket) PutAInt8(v []int8)       { putArray(p, v, p.PutInt8) }
func (p *DataPacket) PutAUint8(v []uint8)     { putArray(p, v, p.PutUint8) }
func (p *DataPacket) PutAInt16(v []int16)     { putArray(p, v, p.PutInt16) }
func (p *DataPacket) PutAUint16(v []uint16)   { putArray(p, v, p.PutUint16) }
func (p *DataPacket) PutAInt32(v []int32)     { putArray(p, v, p.PutInt32) }
func (p *DataPacket) PutAUint32(v []uint32)   { putArray(p, v, p.PutUint32) }
func (p *DataPacket) PutAInt64(v []int64)     { putArray(p, v, p.PutInt64) }
func (p *DataPacket) PutAUint64(v []uint64)   { putArray(p, v, p.PutUint64) }
func (p *DataPacket) PutAInt128(v []Int128)   { putArray(p, v, p.PutInt128) }
func (p *DataPacket) PutAUint128(v []Uint128) { putArray(p, v, p.PutUint128) }

// PutEmptyArray writes a zero element count.
func (p *DataPacket) PutEmptyArray() {
	p.PutUint32(0)
}

func (p *DataPacket) GetAInt8() ([]int8, error)       { return getArray(p, 1, p.GetInt8) }
func (p *DataPacket) GetAUint8() ([]uint8, error)     { return getArray(p, 1, p.GetUint8) }
func (p *DataPacket) GetAInt16() ([]int16, error)     { return getArray(p, 2, p.GetInt16) }
func (p *DataPacket) GetAUint16() ([]uint16, error)   { return getArray(p, 2, p.GetUint16) }
func (p *DataPacket) GetAInt32() ([]int32, error)     { return getArray(p, 4, p.GetInt32) }
func (p *DataPacket) GetAUint32() ([]uint32, error)   { return getArray(p, 4, p.GetUint32) }
func (p *DataPacket) GetAInt64() ([]int64, error)     { return getArray(p, 8, p.GetInt64) }
func (p *DataPacket) GetAUint64() ([]uint64, error)   { return getArray(p, 8, p.GetUint64) }
func (p *DataPacket) GetAInt128() ([]Int128, error)   { return getArray(p, 16, p.GetInt128) }
func (p *DataPacket) GetAUint128() ([]Uint128, error) { return getArray(p, 16, p.GetUint128) }

// PutString writes s as a counted UTF-16 string.
func (p *DataPacket) PutString(s string) {
	NewStringBuffer(s).WriteToPacket(p)
}

// PutEmptyString writes the single zero count byte of an empty string.
func (p *DataPacket) PutEmptyString() {
	p.PutUint8(0)
}

func (p *DataPacket) GetString() (string, error) {
	var sb StringBuffer
	if err := sb.ReadFromPacket(p); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Transport side.

// ReadPacket receives a whole data container. When the header announces
// more than the first read returned, it keeps reading until the
// declared length is in the buffer.
func (p *DataPacket) ReadPacket(r io.Reader) error {
	p.Reset()
	if err := p.readContainer(r); err != nil {
		return err
	}
	if t := p.ContainerType(); t != USB_CONTAINER_DATA {
		return SyncError(fmt.Sprintf("got container type %d, want data", t))
	}
	want := int(p.ContainerLength())
	if want < HeaderSize {
		return fmt.Errorf("%w: header announces %d bytes", ErrShortPacket, want)
	}
	if want > p.size {
		if err := p.allocate(want); err != nil {
			return err
		}
		if _, err := io.ReadFull(r, p.buffer[p.size:want]); err != nil {
			return err
		}
		p.size = want
	}
	return nil
}

// ReadChunk performs one read for the streaming receive path. The
// packet then holds the header and whatever payload came with it.
func (p *DataPacket) ReadChunk(r io.Reader) (int, error) {
	p.Reset()
	if err := p.readContainer(r); err != nil {
		return 0, err
	}
	if t := p.ContainerType(); t != USB_CONTAINER_DATA {
		return 0, SyncError(fmt.Sprintf("got container type %d, want data", t))
	}
	return p.size, nil
}

// ReadDataHeader reads exactly one container header. Used by the
// initiator, which streams the payload itself.
func (p *DataPacket) ReadDataHeader(r io.Reader) error {
	p.Reset()
	if _, err := io.ReadFull(r, p.buffer[:HeaderSize]); err != nil {
		return err
	}
	p.size = HeaderSize
	return nil
}

// WritePacket stamps the header and sends header and payload in one
// write.
func (p *DataPacket) WritePacket(w io.Writer) error {
	if p.err != nil {
		return p.err
	}
	return p.writeContainer(w, USB_CONTAINER_DATA)
}

// WriteDataHeader sends a header that announces length bytes in total,
// header included. A length beyond 32 bits is sent as 0xFFFFFFFF.
// The payload follows through the transport's file transfer.
func (p *DataPacket) WriteDataHeader(w io.Writer, length int64) error {
	if length > 0xFFFFFFFF {
		length = 0xFFFFFFFF
	}
	byteOrder.PutUint32(p.buffer[offsetLength:], uint32(length))
	byteOrder.PutUint16(p.buffer[offsetType:], USB_CONTAINER_DATA)
	n, err := w.Write(p.buffer[:HeaderSize])
	if err != nil {
		return err
	}
	if n != HeaderSize {
		return fmt.Errorf("short header write: %d bytes", n)
	}
	return nil
}
