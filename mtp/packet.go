package mtp

import (
	"encoding/binary"
	"fmt"
	"io"
)

var byteOrder = binary.LittleEndian

// Container header layout.
const (
	HeaderSize    = 2*2 + 2*4
	MaxParameters = 5

	offsetLength = 0
	offsetType   = 4
	offsetCode   = 6
	offsetTID    = 8
)

// The linux gadget driver moves 16kb per call.
const rwBufSize = 0x4000

// Growth step for packet buffers.
const bufferIncrement = 0x4000

// MaxPacketSize bounds the buffer of a single packet. Object payloads
// are streamed through the transport and never buffered whole.
var MaxPacketSize = 64 << 20

// Packet is a single container: a header followed by parameters or a
// data payload, held in one growable buffer.
type Packet struct {
	buffer []byte
	size   int
}

func newPacket(capacity int) Packet {
	if capacity < HeaderSize {
		capacity = HeaderSize
	}
	return Packet{
		buffer: make([]byte, capacity),
		size:   HeaderSize,
	}
}

// Reset truncates the packet to its header and clears the buffer.
func (p *Packet) Reset() {
	p.size = HeaderSize
	clear(p.buffer)
}

// allocate makes sure the buffer holds at least n bytes. It grows by a
// fixed increment beyond n and never shrinks.
func (p *Packet) allocate(n int) error {
	if n <= len(p.buffer) {
		return nil
	}
	if n > MaxPacketSize {
		return fmt.Errorf("%w: need %d bytes, limit %d", ErrPacketTooLarge, n, MaxPacketSize)
	}
	grown := n + bufferIncrement
	if grown > MaxPacketSize {
		grown = MaxPacketSize
	}
	buf := make([]byte, grown)
	copy(buf, p.buffer[:p.size])
	p.buffer = buf
	return nil
}

// Bytes returns the valid part of the packet, header included.
func (p *Packet) Bytes() []byte {
	return p.buffer[:p.size]
}

func (p *Packet) Size() int {
	return p.size
}

func (p *Packet) ContainerLength() uint32 {
	return byteOrder.Uint32(p.buffer[offsetLength:])
}

func (p *Packet) ContainerType() uint16 {
	return byteOrder.Uint16(p.buffer[offsetType:])
}

func (p *Packet) ContainerCode() uint16 {
	return byteOrder.Uint16(p.buffer[offsetCode:])
}

func (p *Packet) SetContainerCode(code uint16) {
	byteOrder.PutUint16(p.buffer[offsetCode:], code)
}

func (p *Packet) TransactionID() uint32 {
	return byteOrder.Uint32(p.buffer[offsetTID:])
}

func (p *Packet) SetTransactionID(tid uint32) {
	byteOrder.PutUint32(p.buffer[offsetTID:], tid)
}

func paramOffset(index int) (int, bool) {
	if index < 1 || index > MaxParameters {
		mtpLog.Errorf("parameter index %d out of range", index)
		return 0, false
	}
	return HeaderSize + 4*(index-1), true
}

// Parameter returns parameter index, counting from 1. Out of range
// indices return 0.
func (p *Packet) Parameter(index int) uint32 {
	off, ok := paramOffset(index)
	if !ok {
		return 0
	}
	return byteOrder.Uint32(p.buffer[off:])
}

// SetParameter stores parameter index, counting from 1, and extends
// the packet to cover it. Out of range indices are ignored.
func (p *Packet) SetParameter(index int, value uint32) {
	off, ok := paramOffset(index)
	if !ok {
		return
	}
	end := off + 4
	if err := p.allocate(end); err != nil {
		return
	}
	byteOrder.PutUint32(p.buffer[off:], value)
	if p.size < end {
		p.size = end
	}
}

// NumParameters is the number of parameters the container carries.
func (p *Packet) NumParameters() int {
	n := (p.size - HeaderSize) / 4
	if n > MaxParameters {
		n = MaxParameters
	}
	return n
}

// Params returns the carried parameters in order.
func (p *Packet) Params() []uint32 {
	n := p.NumParameters()
	r := make([]uint32, n)
	for i := range r {
		r[i] = p.Parameter(i + 1)
	}
	return r
}

func (p *Packet) stamp(containerType uint16) {
	byteOrder.PutUint32(p.buffer[offsetLength:], uint32(p.size))
	byteOrder.PutUint16(p.buffer[offsetType:], containerType)
}

// writeContainer stamps the header and sends the packet in one write.
func (p *Packet) writeContainer(w io.Writer, containerType uint16) error {
	p.stamp(containerType)
	n, err := w.Write(p.buffer[:p.size])
	if err != nil {
		return err
	}
	if n != p.size {
		return fmt.Errorf("short write: %d of %d bytes", n, p.size)
	}
	if dataLog.IsDebug() {
		dataLog.Debugf("send %s 0x%x bytes:\n%s", containerName(containerType), p.size, hexDump(p.buffer[:p.size]))
	}
	return nil
}

// readContainer fills the packet from a single read. Bytes past the
// read are zeroed so stale parameters don't leak into the next request.
func (p *Packet) readContainer(r io.Reader) error {
	n, err := r.Read(p.buffer)
	if err != nil {
		return err
	}
	if n < HeaderSize {
		return fmt.Errorf("%w: got %d bytes", ErrShortPacket, n)
	}
	p.size = n
	clear(p.buffer[n:])
	if dataLog.IsDebug() {
		dataLog.Debugf("recv %s 0x%x bytes:\n%s", containerName(p.ContainerType()), n, hexDump(p.buffer[:n]))
	}
	return nil
}

// RequestPacket is a command container sent by the initiator.
type RequestPacket struct {
	Packet
}

func NewRequestPacket() *RequestPacket {
	return &RequestPacket{Packet: newPacket(512)}
}

// Read receives one command container in a single transport read.
func (p *RequestPacket) Read(r io.Reader) error {
	if err := p.readContainer(r); err != nil {
		return err
	}
	if t := p.ContainerType(); t != USB_CONTAINER_COMMAND {
		return SyncError(fmt.Sprintf("got container type %d, want command", t))
	}
	return nil
}

// Write sends the request. Used by the initiator side.
func (p *RequestPacket) Write(w io.Writer) error {
	return p.writeContainer(w, USB_CONTAINER_COMMAND)
}

// ResponsePacket is the response container that closes a transaction.
type ResponsePacket struct {
	Packet
}

func NewResponsePacket() *ResponsePacket {
	return &ResponsePacket{Packet: newPacket(512)}
}

func (p *ResponsePacket) Write(w io.Writer) error {
	return p.writeContainer(w, USB_CONTAINER_RESPONSE)
}

// Read receives a response. Used by the initiator side.
func (p *ResponsePacket) Read(r io.Reader) error {
	if err := p.readContainer(r); err != nil {
		return err
	}
	if t := p.ContainerType(); t != USB_CONTAINER_RESPONSE {
		return SyncError(fmt.Sprintf("got container type %d, want response", t))
	}
	return nil
}

// EventPacket is an asynchronous notification sent on the interrupt
// endpoint.
type EventPacket struct {
	Packet
}

func NewEventPacket() *EventPacket {
	return &EventPacket{Packet: newPacket(HeaderSize + 4*3)}
}

func (p *EventPacket) Write(w io.Writer) error {
	return p.writeContainer(w, USB_CONTAINER_EVENT)
}

// Read receives an event. Used by the initiator side.
func (p *EventPacket) Read(r io.Reader) error {
	if err := p.readContainer(r); err != nil {
		return err
	}
	if t := p.ContainerType(); t != USB_CONTAINER_EVENT {
		return SyncError(fmt.Sprintf("got container type %d, want event", t))
	}
	return nil
}
