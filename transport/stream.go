package transport

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hanwen/go-mtpd/log"
	"github.com/hanwen/go-mtpd/mtp"
	"github.com/hanwen/go-mtpd/server"
)

// ErrUnframed is returned for a container whose length field is
// 0xFFFFFFFF: a byte stream has no short packet to mark its end.
var ErrUnframed = errors.New("container of unknown length on a stream")

// Stream carries containers over a byte stream, such as a socket or
// one end of a net.Pipe. Since the stream has no transfer boundaries,
// Read frames containers by the length in their header: a read never
// crosses into the next container.
//
// Both ends of a loopback connection use a Stream.
type Stream struct {
	conn io.ReadWriteCloser
	log  *log.ChildLogger

	// bytes left in the container being read
	pending int64

	writeMu sync.Mutex

	eventMu sync.Mutex
	events  io.Writer
	eventCh chan []byte
}

var _ server.Transport = (*Stream)(nil)

// NewStream wraps conn. Events are written to events; when it is nil,
// they are queued on the channel returned by Events.
func NewStream(conn io.ReadWriteCloser, events io.Writer, l *log.ChildLogger) *Stream {
	if l == nil {
		l = log.Quiet().Transport
	}
	s := &Stream{
		conn:   conn,
		log:    l,
		events: events,
	}
	if events == nil {
		s.eventCh = make(chan []byte, 16)
	}
	return s
}

// Events returns queued event containers, or nil when events go to a
// writer.
func (s *Stream) Events() <-chan []byte {
	return s.eventCh
}

// Read returns at most the rest of the current container. At a
// container boundary it reads a full header first.
func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if s.pending > 0 {
		n, err := s.conn.Read(p[:min(int64(len(p)), s.pending)])
		s.pending -= int64(n)
		return n, err
	}
	if len(p) < mtp.HeaderSize {
		return 0, io.ErrShortBuffer
	}
	if _, err := io.ReadFull(s.conn, p[:mtp.HeaderSize]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return 0, fmt.Errorf("partial header: %w", err)
		}
		return 0, err
	}
	length := int64(p[0]) | int64(p[1])<<8 | int64(p[2])<<16 | int64(p[3])<<24
	if length == 0xFFFFFFFF {
		return 0, ErrUnframed
	}
	if length < mtp.HeaderSize {
		return 0, fmt.Errorf("%w: header announces %d bytes", mtp.ErrShortPacket, length)
	}
	s.pending = length - mtp.HeaderSize
	n := min(int64(len(p)-mtp.HeaderSize), s.pending)
	if n == 0 {
		return mtp.HeaderSize, nil
	}
	m, err := io.ReadFull(s.conn, p[mtp.HeaderSize:mtp.HeaderSize+n])
	s.pending -= int64(m)
	return mtp.HeaderSize + m, err
}

func (s *Stream) Write(p []byte) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.Write(p)
}

func (s *Stream) SendFile(src *os.File, offset, length int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	n, err := io.Copy(s.conn, io.NewSectionReader(src, offset, length))
	if err != nil {
		return err
	}
	if n != length {
		return fmt.Errorf("sent %d of %d bytes: %w", n, length, io.ErrUnexpectedEOF)
	}
	s.log.Debugf("sent 0x%x bytes", length)
	return nil
}

// ReceiveFile copies the rest of the current container to dst and
// returns the number of bytes copied. A negative length takes whatever
// the header announced; a longer one is cut to it.
func (s *Stream) ReceiveFile(dst *os.File, offset, length int64) (int64, error) {
	if length < 0 || length > s.pending {
		length = s.pending
	}
	n, err := io.CopyN(io.NewOffsetWriter(dst, offset), s.conn, length)
	s.pending -= n
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

func (s *Stream) SendEvent(p []byte) error {
	if s.eventCh != nil {
		select {
		case s.eventCh <- append([]byte(nil), p...):
		default:
			s.log.Warningf("event queue full, dropping %d byte event", len(p))
		}
		return nil
	}
	s.eventMu.Lock()
	defer s.eventMu.Unlock()
	_, err := s.events.Write(p)
	return err
}

// Close closes the connection. Blocked reads return an error.
func (s *Stream) Close() error {
	return s.conn.Close()
}
