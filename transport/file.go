// Package transport connects the MTP server to an initiator: through
// the character device of a USB gadget function, or over any byte
// stream.
package transport

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/hanwen/go-mtpd/log"
	"github.com/hanwen/go-mtpd/mtp"
	"github.com/hanwen/go-mtpd/server"
)

// The linux gadget driver moves 16kb per call.
const rwBufSize = 0x4000

// DefaultPacketSize is the bulk max packet size of a high speed link.
const DefaultPacketSize = 512

// File talks to a gadget function through its bulk character device,
// where every read and write is one USB transfer. Events go to a
// separate interrupt device, when there is one.
type File struct {
	bulk   *os.File
	events *os.File

	packetSize int
	log        *log.ChildLogger
}

var _ server.Transport = (*File)(nil)

// OpenFile opens the bulk device and, if eventPath is not empty, the
// event device.
func OpenFile(bulkPath, eventPath string, packetSize int, l *log.ChildLogger) (*File, error) {
	bulk, err := os.OpenFile(bulkPath, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	var events *os.File
	if eventPath != "" {
		if events, err = os.OpenFile(eventPath, os.O_WRONLY, 0); err != nil {
			bulk.Close()
			return nil, err
		}
	}
	return NewFile(bulk, events, packetSize, l), nil
}

func NewFile(bulk, events *os.File, packetSize int, l *log.ChildLogger) *File {
	if packetSize <= 0 {
		packetSize = DefaultPacketSize
	}
	if l == nil {
		l = log.Quiet().Transport
	}
	return &File{
		bulk:       bulk,
		events:     events,
		packetSize: packetSize,
		log:        l,
	}
}

// mapError turns the driver's ECANCELED, raised when the host cancels
// a transfer, into mtp.ErrTransactionCancelled.
func mapError(err error) error {
	if errors.Is(err, unix.ECANCELED) {
		return fmt.Errorf("%w: %v", mtp.ErrTransactionCancelled, err)
	}
	return err
}

// Read returns one transfer. Zero length packets that terminate a
// previous transfer are skipped.
func (f *File) Read(p []byte) (int, error) {
	for {
		n, err := f.bulk.Read(p)
		if err != nil {
			return n, mapError(err)
		}
		if n > 0 || len(p) == 0 {
			return n, nil
		}
		f.log.Debug("skipping zero length packet")
	}
}

func (f *File) Write(p []byte) (int, error) {
	n, err := f.bulk.Write(p)
	return n, mapError(err)
}

// SendFile streams length bytes of src. The data header was sent
// already, so a transfer ending on a packet boundary gets a zero
// length packet to mark its end.
func (f *File) SendFile(src *os.File, offset, length int64) error {
	r := io.NewSectionReader(src, offset, length)
	buf := make([]byte, rwBufSize)
	var sent int64
	for sent < length {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return werr
			}
			sent += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}
	if sent != length {
		return fmt.Errorf("sent %d of %d bytes: %w", sent, length, io.ErrUnexpectedEOF)
	}
	if (length+mtp.HeaderSize)%int64(f.packetSize) == 0 {
		if _, err := f.Write(buf[:0]); err != nil {
			return fmt.Errorf("zero length packet: %w", err)
		}
	}
	f.log.Debugf("sent 0x%x bytes", length)
	return nil
}

// ReceiveFile stores the rest of an incoming container at offset of
// dst and returns the number of bytes stored. With a negative length
// it reads until a short transfer, as the host ends a container of
// unknown size. A short packet before length bytes ends the container
// early.
func (f *File) ReceiveFile(dst *os.File, offset, length int64) (int64, error) {
	w := io.NewOffsetWriter(dst, offset)
	buf := make([]byte, rwBufSize)
	var written int64

	if length >= 0 {
		for written < length {
			toread := buf
			if int64(len(toread)) > length-written {
				toread = buf[:length-written]
			}
			n, err := f.Read(toread)
			if err != nil {
				return written, err
			}
			if _, err := w.Write(buf[:n]); err != nil {
				return written, err
			}
			written += int64(n)
			if n < len(toread) && n%f.packetSize != 0 {
				f.log.Debugf("container ended after 0x%x of 0x%x bytes", written, length)
				break
			}
		}
		return written, nil
	}

	var lastRead int
	for {
		n, err := f.bulk.Read(buf)
		if err != nil {
			return written, mapError(err)
		}
		lastRead = n
		if _, err := w.Write(buf[:n]); err != nil {
			return written, err
		}
		written += int64(n)
		if n < len(buf) {
			break
		}
	}
	if lastRead > 0 && lastRead%f.packetSize == 0 {
		// A full last packet is followed by a zero length one.
		if _, err := f.bulk.Read(buf); err != nil {
			return written, mapError(err)
		}
	}
	return written, nil
}

// SendEvent writes an event container to the interrupt device. Without
// one, events are dropped.
func (f *File) SendEvent(p []byte) error {
	if f.events == nil {
		f.log.Debugf("no event device, dropping %d byte event", len(p))
		return nil
	}
	_, err := f.events.Write(p)
	return mapError(err)
}

func (f *File) Close() error {
	err := f.bulk.Close()
	if f.events != nil {
		if eerr := f.events.Close(); err == nil {
			err = eerr
		}
	}
	return err
}
